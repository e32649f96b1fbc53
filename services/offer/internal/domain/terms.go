package domain

import (
	"fmt"
	"strings"
)

// OfferType identifies the kind of discount an offer grants.
type OfferType string

const (
	TypePercentage OfferType = "percentage"
	TypeFixed      OfferType = "fixed"
	TypeEarlyBird  OfferType = "early_bird"
	TypeLastMinute OfferType = "last_minute"
	TypeGroup      OfferType = "group"
	TypeBundle     OfferType = "bundle"
	TypePromoCode  OfferType = "promo_code"
)

// ValidTypes returns every offer type in display order.
func ValidTypes() []OfferType {
	return []OfferType{
		TypePercentage, TypeFixed, TypeEarlyBird, TypeLastMinute,
		TypeGroup, TypeBundle, TypePromoCode,
	}
}

// IsValidType reports whether t names a known offer type.
func IsValidType(t OfferType) bool {
	for _, v := range ValidTypes() {
		if v == t {
			return true
		}
	}
	return false
}

// ValueKind says how a Value's Amount is interpreted.
type ValueKind string

const (
	// KindPercent amounts are basis points: 2000 is 20%.
	KindPercent ValueKind = "percent"
	// KindFixed amounts are minor currency units.
	KindFixed ValueKind = "fixed"
)

// MaxBasisPoints is 100%.
const MaxBasisPoints = 10000

// Value is a discount magnitude.
type Value struct {
	Kind   ValueKind
	Amount int64
}

// Percent builds a percent Value from basis points.
func Percent(bps int64) Value { return Value{Kind: KindPercent, Amount: bps} }

// Amount builds a fixed Value from minor units.
func Amount(minor int64) Value { return Value{Kind: KindFixed, Amount: minor} }

func (v Value) validate() error {
	switch v.Kind {
	case KindPercent:
		if v.Amount <= 0 || v.Amount > MaxBasisPoints {
			return fmt.Errorf("percent discount must be between 1 and %d basis points", MaxBasisPoints)
		}
	case KindFixed:
		if v.Amount <= 0 {
			return fmt.Errorf("fixed discount must be positive")
		}
	default:
		return fmt.Errorf("unknown value kind %q", v.Kind)
	}
	return nil
}

// Terms is the type-specific part of an offer. Exactly one of the variants
// below implements it.
type Terms interface {
	Type() OfferType
	// Discount is the magnitude the calculator applies.
	Discount() Value
	validate() error
}

// Percentage takes BasisPoints off the base price.
type Percentage struct{ BasisPoints int64 }

// Fixed takes Amount minor units off the base price.
type Fixed struct{ Amount int64 }

// EarlyBird applies when the tour is at least MinDaysInAdvance calendar days away.
type EarlyBird struct {
	MinDaysInAdvance int
	Value            Value
}

// LastMinute applies when the tour is at most MaxDaysBeforeTour calendar days away.
type LastMinute struct {
	MaxDaysBeforeTour int
	Value             Value
}

// Group applies to parties of at least MinGroupSize.
type Group struct {
	MinGroupSize int
	Value        Value
}

// Bundle applies to carts of at least MinItems bookings.
type Bundle struct {
	MinItems int
	Value    Value
}

// PromoCode applies only when the customer supplies Code.
type PromoCode struct {
	Code  string
	Value Value
}

func (Percentage) Type() OfferType { return TypePercentage }
func (Fixed) Type() OfferType      { return TypeFixed }
func (EarlyBird) Type() OfferType  { return TypeEarlyBird }
func (LastMinute) Type() OfferType { return TypeLastMinute }
func (Group) Type() OfferType      { return TypeGroup }
func (Bundle) Type() OfferType     { return TypeBundle }
func (PromoCode) Type() OfferType  { return TypePromoCode }

func (t Percentage) Discount() Value { return Percent(t.BasisPoints) }
func (t Fixed) Discount() Value      { return Amount(t.Amount) }
func (t EarlyBird) Discount() Value  { return t.Value }
func (t LastMinute) Discount() Value { return t.Value }
func (t Group) Discount() Value      { return t.Value }
func (t Bundle) Discount() Value     { return t.Value }
func (t PromoCode) Discount() Value  { return t.Value }

func (t Percentage) validate() error { return t.Discount().validate() }
func (t Fixed) validate() error      { return t.Discount().validate() }

func (t EarlyBird) validate() error {
	if t.MinDaysInAdvance < 1 {
		return fmt.Errorf("min_days_in_advance must be at least 1")
	}
	return t.Value.validate()
}

func (t LastMinute) validate() error {
	if t.MaxDaysBeforeTour < 0 {
		return fmt.Errorf("max_days_before_tour must not be negative")
	}
	return t.Value.validate()
}

func (t Group) validate() error {
	if t.MinGroupSize < 2 {
		return fmt.Errorf("min_group_size must be at least 2")
	}
	return t.Value.validate()
}

func (t Bundle) validate() error {
	if t.MinItems < 2 {
		return fmt.Errorf("min_items must be at least 2")
	}
	return t.Value.validate()
}

func (t PromoCode) validate() error {
	if strings.TrimSpace(t.Code) == "" {
		return fmt.Errorf("code is required for promo_code offers")
	}
	return t.Value.validate()
}

// FlatTerms is the column/JSON layout of Terms. DiscountValue is basis
// points for percent values and minor units for fixed ones.
type FlatTerms struct {
	Type              OfferType `json:"type"`
	DiscountValue     int64     `json:"discount_value"`
	ValueKind         ValueKind `json:"value_kind,omitempty"`
	MinDaysInAdvance  int       `json:"min_days_in_advance,omitempty"`
	MaxDaysBeforeTour int       `json:"max_days_before_tour,omitempty"`
	MinGroupSize      int       `json:"min_group_size,omitempty"`
	MinItems          int       `json:"min_items,omitempty"`
	Code              string    `json:"code,omitempty"`
}

// Flatten converts t to its flat layout. A nil t flattens to the zero value.
func Flatten(t Terms) FlatTerms {
	if t == nil {
		return FlatTerms{}
	}
	v := t.Discount()
	f := FlatTerms{Type: t.Type(), DiscountValue: v.Amount, ValueKind: v.Kind}
	switch t := t.(type) {
	case EarlyBird:
		f.MinDaysInAdvance = t.MinDaysInAdvance
	case LastMinute:
		f.MaxDaysBeforeTour = t.MaxDaysBeforeTour
	case Group:
		f.MinGroupSize = t.MinGroupSize
	case Bundle:
		f.MinItems = t.MinItems
	case PromoCode:
		f.Code = t.Code
	}
	return f
}

// Terms converts the flat layout back to its variant. An empty ValueKind
// means percent. Percentage and fixed offers carry their kind in their
// type, so a ValueKind naming the other kind is rejected.
func (f FlatTerms) Terms() (Terms, error) {
	kind := f.ValueKind
	if kind == "" {
		kind = KindPercent
	}
	v := Value{Kind: kind, Amount: f.DiscountValue}

	switch f.Type {
	case TypePercentage:
		if f.ValueKind != "" && f.ValueKind != KindPercent {
			return nil, fmt.Errorf("value kind %q does not fit a %s offer", f.ValueKind, f.Type)
		}
		return Percentage{BasisPoints: f.DiscountValue}, nil
	case TypeFixed:
		if f.ValueKind != "" && f.ValueKind != KindFixed {
			return nil, fmt.Errorf("value kind %q does not fit a %s offer", f.ValueKind, f.Type)
		}
		return Fixed{Amount: f.DiscountValue}, nil
	case TypeEarlyBird:
		return EarlyBird{MinDaysInAdvance: f.MinDaysInAdvance, Value: v}, nil
	case TypeLastMinute:
		return LastMinute{MaxDaysBeforeTour: f.MaxDaysBeforeTour, Value: v}, nil
	case TypeGroup:
		return Group{MinGroupSize: f.MinGroupSize, Value: v}, nil
	case TypeBundle:
		return Bundle{MinItems: f.MinItems, Value: v}, nil
	case TypePromoCode:
		return PromoCode{Code: f.Code, Value: v}, nil
	default:
		return nil, fmt.Errorf("unknown offer type %q", f.Type)
	}
}

// ValidateTerms checks the variant's own constraints.
func ValidateTerms(t Terms) error {
	if t == nil {
		return fmt.Errorf("offer terms are required")
	}
	return t.validate()
}
