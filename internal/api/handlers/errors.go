package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Endgame-Tech/choma-sub014/internal/adapters/httpx"
	"github.com/Endgame-Tech/choma-sub014/internal/api/dto"
	"github.com/Endgame-Tech/choma-sub014/internal/domain"
)

// writeServiceError translates service and domain errors into HTTP responses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		noApplicable *domain.NoApplicableSlotsError
		regression   *domain.RegressionError
		unknown      *domain.UnknownStatusError
		missingDate  *domain.MissingScheduleDateError
		forbidden    *domain.ForbiddenTargetError
		network      *domain.NetworkError
		malformed    *domain.MalformedResponseError
		upstream     *httpx.StatusError
		badDate      *time.ParseError
	)

	switch {
	case errors.As(err, &noApplicable):
		writeJSON(w, r, http.StatusConflict, dto.ErrorResponse{
			Error:           err.Error(),
			PerSlotOutcomes: dto.NewSlotOutcomes(noApplicable.Outcomes),
		})
	case errors.As(err, &regression), errors.Is(err, domain.ErrConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.As(err, &unknown):
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &missingDate), errors.As(err, &badDate):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.As(err, &forbidden):
		writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrNotSubscriptionParty):
		writeError(w, r, http.StatusForbidden, domain.ErrNotSubscriptionParty.Error())
	case errors.Is(err, domain.ErrSubscriptionNotFound),
		errors.Is(err, domain.ErrSlotNotFound),
		errors.Is(err, domain.ErrDayNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.As(err, &network), errors.As(err, &malformed), errors.As(err, &upstream):
		slog.WarnContext(r.Context(), "upstream failure", "path", r.URL.Path, "error", err)
		writeError(w, r, http.StatusBadGateway, err.Error())
	default:
		slog.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
