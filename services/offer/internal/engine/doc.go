// Package engine evaluates offers against a booking: validity, tour and
// date applicability, discount calculation, best-offer selection and the
// display strings derived from an offer.
//
// Everything here is a pure function of its arguments. Time-of-day
// questions ("does the offer end today?") are answered in the location of
// the now value the caller passes, so callers pass now in the tenant's
// timezone.
package engine
