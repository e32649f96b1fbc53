// Command seed loads offer fixtures from a YAML file into a tenant's offer
// catalogue. Offers go through the same validation as the admin API, so a
// fixture that the API would reject fails the seed as well.
//
//	go run ./services/offer/cmd/seed -tenant acme -file offers.example.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"

	"github.com/tourhub/offers/pkg/database"
	apperrors "github.com/tourhub/offers/pkg/errors"
	pkgkafka "github.com/tourhub/offers/pkg/kafka"
	"github.com/tourhub/offers/pkg/logger"
	"github.com/tourhub/offers/services/offer/internal/config"
	"github.com/tourhub/offers/services/offer/internal/domain"
	"github.com/tourhub/offers/services/offer/internal/event"
	"github.com/tourhub/offers/services/offer/internal/repository/postgres"
	"github.com/tourhub/offers/services/offer/internal/rules"
	"github.com/tourhub/offers/services/offer/internal/service"
	"github.com/tourhub/offers/services/offer/migrations"
)

// --------------------------------------------------------------------------
// Fixture format
// --------------------------------------------------------------------------

type fixtureFile struct {
	Offers []offerFixture `yaml:"offers"`
}

type optionFixture struct {
	TourID          string   `yaml:"tour_id"`
	SelectedOptions []string `yaml:"selected_options"`
	AllOptions      bool     `yaml:"all_options"`
}

type offerFixture struct {
	Name              string `yaml:"name"`
	Description       string `yaml:"description"`
	Type              string `yaml:"type"`
	DiscountValue     int64  `yaml:"discount_value"`
	ValueKind         string `yaml:"value_kind"`
	MinDaysInAdvance  int    `yaml:"min_days_in_advance"`
	MaxDaysBeforeTour int    `yaml:"max_days_before_tour"`
	MinGroupSize      int    `yaml:"min_group_size"`
	MinItems          int    `yaml:"min_items"`
	Code              string `yaml:"code"`

	MaxDiscount          int64           `yaml:"max_discount"`
	Currency             string          `yaml:"currency"`
	StartDate            string          `yaml:"start_date"`
	EndDate              string          `yaml:"end_date"`
	Inactive             bool            `yaml:"inactive"`
	UsageLimit           int             `yaml:"usage_limit"`
	Priority             int             `yaml:"priority"`
	MinBookingValue      int64           `yaml:"min_booking_value"`
	ApplicableTours      []string        `yaml:"applicable_tours"`
	ExcludedTours        []string        `yaml:"excluded_tours"`
	TourOptionSelections []optionFixture `yaml:"tour_option_selections"`
	IsFeatured           bool            `yaml:"is_featured"`
	FeaturedBadgeText    string          `yaml:"featured_badge_text"`
	EligibilityRule      string          `yaml:"eligibility_rule"`
}

// loadFixtures decodes a fixture file. Dates are YYYY-MM-DD in loc or RFC3339.
func loadFixtures(r io.Reader, loc *time.Location) ([]service.CreateOfferInput, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file fixtureFile
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}
	if len(file.Offers) == 0 {
		return nil, errors.New("fixture file has no offers")
	}

	inputs := make([]service.CreateOfferInput, 0, len(file.Offers))
	for i, f := range file.Offers {
		start, err := parseDate(f.StartDate, loc)
		if err != nil {
			return nil, fmt.Errorf("offer %d (%s): start_date: %w", i, f.Name, err)
		}
		end, err := parseDate(f.EndDate, loc)
		if err != nil {
			return nil, fmt.Errorf("offer %d (%s): end_date: %w", i, f.Name, err)
		}

		active := !f.Inactive
		selections := make([]domain.TourOptionSelection, 0, len(f.TourOptionSelections))
		for _, s := range f.TourOptionSelections {
			selections = append(selections, domain.TourOptionSelection(s))
		}

		inputs = append(inputs, service.CreateOfferInput{
			Name:        f.Name,
			Description: f.Description,
			Terms: domain.FlatTerms{
				Type:              domain.OfferType(f.Type),
				DiscountValue:     f.DiscountValue,
				ValueKind:         domain.ValueKind(f.ValueKind),
				MinDaysInAdvance:  f.MinDaysInAdvance,
				MaxDaysBeforeTour: f.MaxDaysBeforeTour,
				MinGroupSize:      f.MinGroupSize,
				MinItems:          f.MinItems,
				Code:              f.Code,
			},
			MaxDiscount:          f.MaxDiscount,
			Currency:             f.Currency,
			StartDate:            start,
			EndDate:              end,
			IsActive:             &active,
			UsageLimit:           f.UsageLimit,
			Priority:             f.Priority,
			MinBookingValue:      f.MinBookingValue,
			ApplicableTours:      f.ApplicableTours,
			ExcludedTours:        f.ExcludedTours,
			TourOptionSelections: selections,
			IsFeatured:           f.IsFeatured,
			FeaturedBadgeText:    f.FeaturedBadgeText,
			EligibilityRule:      f.EligibilityRule,
		})
	}
	return inputs, nil
}

func parseDate(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.ParseInLocation(time.DateOnly, s, loc); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// --------------------------------------------------------------------------
// Main
// --------------------------------------------------------------------------

func main() {
	if err := run(); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	tenant := flag.String("tenant", "", "tenant id that owns the seeded offers")
	file := flag.String("file", "offers.example.yaml", "YAML fixture file")
	flag.Parse()
	if *tenant == "" {
		return errors.New("-tenant is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New("offer-seed", cfg.LogLevel)

	f, err := os.Open(*file)
	if err != nil {
		return fmt.Errorf("open fixtures: %w", err)
	}
	defer f.Close()

	inputs, err := loadFixtures(f, cfg.Location())
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, &database.PostgresConfig{
		Host:     cfg.PostgresHost,
		Port:     cfg.PostgresPort,
		User:     cfg.PostgresUser,
		Password: cfg.PostgresPass,
		DBName:   cfg.PostgresDB,
		SSLMode:  cfg.PostgresSSL,
		MaxConns: 4,
		MinConns: 1,
	}, log)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	if err := database.RunMigrations(ctx, pool, migrations.FS, log); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	evaluator, err := rules.NewEvaluator()
	if err != nil {
		return fmt.Errorf("init rule evaluator: %w", err)
	}
	producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), nil, log)
	defer producer.Close()

	svc := service.NewOfferService(
		postgres.NewOfferRepository(pool),
		evaluator,
		event.NewProducer(producer, log),
		log,
		service.WithLocation(cfg.Location()),
	)

	created, skipped := 0, 0
	for i := range inputs {
		offer, err := svc.CreateOffer(ctx, *tenant, &inputs[i])
		switch {
		case errors.Is(err, apperrors.ErrAlreadyExists):
			skipped++
			log.Warn("offer already exists, skipping", slog.String("name", inputs[i].Name))
		case err != nil:
			return fmt.Errorf("create offer %q: %w", inputs[i].Name, err)
		default:
			created++
			log.Info("offer seeded",
				slog.String("id", offer.ID),
				slog.String("name", offer.Name),
				slog.String("type", string(offer.Type())),
			)
		}
	}

	log.Info("seed complete",
		slog.String("tenant", *tenant),
		slog.Int("created", created),
		slog.Int("skipped", skipped),
	)
	return nil
}
