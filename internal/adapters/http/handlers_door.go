package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/communityforge/door-access-service/internal/application"
	"github.com/communityforge/door-access-service/internal/domain"
)

// whoami reports the caller's identity and granted areas, so the door UI
// can render only the doors the member may open. Unlike the rest of the
// member surface it answers anonymous callers too, with an empty grant
// list, so the UI can show a login prompt instead of an error page.
func (h *Handler) whoami(w http.ResponseWriter, r *http.Request) {
	raw, err := bearerTokenFromHeader(r.Header.Get("Authorization"))
	if err == nil {
		if claims, verr := h.verifier.Verify(r.Context(), raw); verr == nil {
			writeJSON(w, http.StatusOK, map[string]any{
				"authenticated": true,
				"member": map[string]any{
					"id":        claims.MemberID,
					"firstName": claims.FirstName,
					"lastName":  claims.LastName,
					"email":     claims.Email,
				},
				"areas": h.service.GrantedAreas(claims),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": false,
		"areas":         []string{},
	})
}

func (h *Handler) openDoor(w http.ResponseWriter, r *http.Request) {
	claims, ok := memberClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing member identity")
		return
	}

	area := strings.TrimSpace(chi.URLParam(r, "area"))
	if !h.service.IsKnownArea(area) {
		writeMappedError(r.Context(), w, "open_door", domain.ErrUnknownArea)
		return
	}
	if !memberHasArea(h.service.GrantedAreas(claims), area) {
		h.service.RecordDoorEvent(r.Context(), domain.DoorLogEntry{
			MemberID:  claims.MemberID,
			Area:      area,
			Action:    "open",
			Result:    "denied",
			IP:        readIP(r),
			UserAgent: r.UserAgent(),
			Message:   "area not granted",
		})
		writeMappedError(r.Context(), w, "open_door", domain.ErrForbidden)
		return
	}

	res, err := h.service.CreateOpenJob(r.Context(), application.CreateOpenJobRequest{
		MemberID:  claims.MemberID,
		Area:      area,
		RequestIP: readIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		var denial *domain.RetryAfterError
		if errors.As(err, &denial) {
			h.service.RecordDoorEvent(r.Context(), domain.DoorLogEntry{
				MemberID:  claims.MemberID,
				Area:      area,
				Action:    "open",
				Result:    "throttled",
				IP:        readIP(r),
				UserAgent: r.UserAgent(),
				Message:   denial.Message,
			})
			writeRetryDenial(w, denial.Message, denial.RetryAfterSeconds())
			return
		}
		writeMappedError(r.Context(), w, "open_door", err)
		return
	}

	result := "requested"
	if res.Reused {
		result = "reused"
	}
	h.service.RecordDoorEvent(r.Context(), domain.DoorLogEntry{
		MemberID:  claims.MemberID,
		Area:      area,
		Action:    "open",
		Result:    result,
		IP:        readIP(r),
		UserAgent: r.UserAgent(),
		Context:   map[string]any{"jobId": res.JobID},
	})

	// expiresAt is 0 when the reused job is already dispatched and no
	// pending deadline remains.
	var expiresAt int64
	if !res.ExpiresAt.IsZero() {
		expiresAt = res.ExpiresAt.Unix()
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"success":   true,
		"accepted":  true,
		"jobId":     res.JobID,
		"status":    string(res.Status),
		"expiresAt": expiresAt,
	})
}

func memberHasArea(granted []string, area string) bool {
	for _, a := range granted {
		if a == area {
			return true
		}
	}
	return false
}
