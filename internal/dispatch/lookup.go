package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Hkhorsha1359/KoachCalltakerAgent/internal/domain"
)

// DefaultRawDetailLimit caps the raw detail payload carried on a merged
// reservation snapshot.
const DefaultRawDetailLimit = 2500

const truncationMarker = "... [truncated]"

// Lookup resolves a caller phone number to a reservation snapshot through
// the two-stage dispatch protocol: a thin status record by phone, then the
// authoritative detail record by reservation id. Every stage degrades
// rather than failing the request.
type Lookup struct {
	tokens   *TokenCache
	client   HTTPDoer
	rawLimit int
	logger   *zap.Logger
	tracer   trace.Tracer
}

// NewLookup wires the reservation lookup. rawLimit <= 0 falls back to
// DefaultRawDetailLimit.
func NewLookup(tokens *TokenCache, client HTTPDoer, rawLimit int, logger *zap.Logger) *Lookup {
	if client == nil {
		client = DefaultHTTPClient()
	}
	if rawLimit <= 0 {
		rawLimit = DefaultRawDetailLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Lookup{
		tokens:   tokens,
		client:   client,
		rawLimit: rawLimit,
		logger:   logger,
		tracer:   otel.Tracer("github.com/Hkhorsha1359/KoachCalltakerAgent/internal/dispatch"),
	}
}

// Lookup runs the two-stage protocol. The result is always well formed:
// any failure, including a panic below this frame, becomes a NotFound or
// partial Found result with an explanatory note.
func (s *Lookup) Lookup(ctx context.Context, baseURL, tenantSlug, principal, secret, phone string) (result domain.LookupResult) {
	ctx, span := s.tracer.Start(ctx, "Lookup.Lookup")
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("lookup panicked", zap.Any("panic", r))
			result = domain.LookupResult{Note: fmt.Sprintf("lookup failed: %v", r)}
		}
	}()

	if strings.TrimSpace(phone) == "" {
		return domain.LookupResult{Note: "no caller phone number available"}
	}
	if strings.TrimSpace(principal) == "" {
		return domain.LookupResult{Note: "no dispatch principal configured"}
	}

	token, err := s.tokens.Acquire(ctx, baseURL, tenantSlug, principal, secret)
	if err != nil {
		span.RecordError(err)
		return domain.LookupResult{Note: fmt.Sprintf("dispatch authentication unavailable: %v", err)}
	}

	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	headers := map[string]string{
		"Authorization": "Bearer " + token,
		"Accept":        "application/json",
	}

	statusURL := base + "/Api/Trip/GetLastReservationStatusByPhone?phone=" + url.QueryEscape(phone)
	statusBody, err := send(ctx, s.client, http.MethodGet, statusURL, headers, nil)
	if err != nil {
		span.RecordError(err)
		return domain.LookupResult{Note: fmt.Sprintf("status lookup failed: %v", err)}
	}

	reservation, rid := mapStatus(statusBody)
	if rid == "" {
		return domain.LookupResult{
			Found:       true,
			Reservation: reservation,
			Note:        "detail enrichment skipped: status record carried no reservation id",
		}
	}
	reservation.ID = rid

	detailBody, err := s.fetchDetail(ctx, base, rid, headers)
	if err != nil {
		span.RecordError(err)
		s.logger.Warn("detail lookup failed, using status fields",
			zap.String("rid", rid),
			zap.Error(err))
		return domain.LookupResult{
			Found:       true,
			Reservation: reservation,
			Note:        fmt.Sprintf("detail lookup failed: %v", err),
		}
	}

	merged := mergeDetail(reservation, detailBody)
	merged.RawDetail = Truncate(string(detailBody), s.rawLimit)
	return domain.LookupResult{Found: true, Reservation: merged}
}

// fetchDetail tries the known deployment path variants in order. A non-2xx
// status falls through to the next variant; a transport-level failure
// aborts immediately because those are not deployment specific.
func (s *Lookup) fetchDetail(ctx context.Context, base, rid string, headers map[string]string) ([]byte, error) {
	variants := []string{
		base + "/Trip/GetReservationByRid/" + url.PathEscape(rid),
		base + "/Api/Trip/GetReservationByRid/" + url.PathEscape(rid),
	}

	var lastErr error
	for _, variant := range variants {
		body, err := send(ctx, s.client, http.MethodGet, variant, headers, nil)
		if err == nil {
			return body, nil
		}
		var statusErr *StatusError
		if !errors.As(err, &statusErr) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

// mapStatus extracts the thin stage-one record and the reservation id from
// the status-by-phone payload.
func mapStatus(body []byte) (domain.Reservation, string) {
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return domain.Reservation{}, ""
	}
	for _, key := range []string{"data", "Data", "result", "Result"} {
		if nested, ok := asMap(doc[key]); ok {
			doc = nested
			break
		}
	}
	reservation := domain.Reservation{
		Status:        firstString(doc, "status", "Status", "reservationStatus", "ReservationStatus"),
		Pickup:        firstString(doc, "pickup", "Pickup", "pickupAddress", "PickupAddress", "puAddress"),
		Dropoff:       firstString(doc, "dropoff", "Dropoff", "dropoffAddress", "DropoffAddress", "doAddress"),
		ScheduledTime: firstString(doc, "scheduledTime", "ScheduledTime", "pickupTime", "PickupTime", "puDateTime"),
	}
	rid := firstString(doc, "rid", "Rid", "RID", "reservationId", "ReservationId", "ReservationID", "id", "Id")
	return reservation, rid
}

// mergeDetail overlays non-empty detail fields onto the stage-one record.
// Stage-one values remain the fallback.
func mergeDetail(base domain.Reservation, detailBody []byte) domain.Reservation {
	var doc map[string]any
	if err := json.Unmarshal(detailBody, &doc); err != nil {
		return base
	}
	for _, key := range []string{"data", "Data", "result", "Result"} {
		if nested, ok := asMap(doc[key]); ok {
			doc = nested
			break
		}
	}

	overlay := func(current *string, keys ...string) {
		if value := firstString(doc, keys...); value != "" {
			*current = value
		}
	}

	overlay(&base.Status, "status", "Status", "reservationStatus", "ReservationStatus")
	overlay(&base.Pickup, "pickup", "Pickup", "pickupAddress", "PickupAddress", "puAddress")
	overlay(&base.Dropoff, "dropoff", "Dropoff", "dropoffAddress", "DropoffAddress", "doAddress")
	overlay(&base.ScheduledTime, "scheduledTime", "ScheduledTime", "pickupTime", "PickupTime", "puDateTime")
	overlay(&base.PassengerName, "passengerName", "PassengerName", "passenger", "Passenger", "customerName", "CustomerName")
	overlay(&base.VehicleNumber, "vehicleNumber", "VehicleNumber", "vehicle", "Vehicle", "carNumber", "CarNumber")
	overlay(&base.DriverName, "driverName", "DriverName", "driver", "Driver")
	overlay(&base.PaymentType, "paymentType", "PaymentType", "payment", "Payment", "paymentMethod", "PaymentMethod")
	return base
}

// Truncate caps s at limit bytes, appending a visible marker. Truncating an
// already-truncated string at the same cap returns it unchanged.
func Truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	if strings.HasSuffix(s, truncationMarker) && len(s) <= limit+len(truncationMarker) {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + truncationMarker
}
