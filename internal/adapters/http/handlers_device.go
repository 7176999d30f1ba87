package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/communityforge/door-access-service/internal/application"
	"github.com/communityforge/door-access-service/internal/domain"
)

const (
	nextPollBusyMs = 200
	nextPollIdleMs = 800
)

type devicePollRequest struct {
	Limit int      `json:"limit"`
	Areas []string `json:"areas,omitempty"`
}

// pollAreas resolves the areas a poll may claim for. A device can narrow the
// poll to a subset of its registered areas; anything it does not serve is
// ignored.
func pollAreas(device domain.Device, requested []string) []string {
	if len(requested) == 0 {
		return device.Areas
	}
	areas := make([]string, 0, len(requested))
	for _, a := range requested {
		if device.ServesArea(a) {
			areas = append(areas, a)
		}
	}
	return areas
}

type deviceConfirmRequest struct {
	JobID   int64          `json:"jobId"`
	Nonce   string         `json:"nonce"`
	OK      bool           `json:"ok"`
	Message string         `json:"message,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// devicePoll claims pending jobs for the calling device. The response tells
// the device how soon to poll again: fast when work was handed out, backed
// off when the queue was empty.
func (h *Handler) devicePoll(w http.ResponseWriter, r *http.Request) {
	device, ok := deviceFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing device identity")
		return
	}

	var req devicePollRequest
	if r.ContentLength > 0 {
		if err := decodeBody(r, &req); err != nil {
			writeValidationError(r.Context(), w, "device_poll", err)
			return
		}
	}

	dispatched, err := h.service.DispatchJobs(r.Context(), application.DispatchRequest{
		DeviceID: device.DeviceID,
		Areas:    pollAreas(device, req.Areas),
		Limit:    req.Limit,
	})
	if err != nil {
		writeMappedError(r.Context(), w, "device_poll", err)
		return
	}

	jobs := make([]map[string]any, 0, len(dispatched))
	for _, job := range dispatched {
		jobs = append(jobs, map[string]any{
			"jobId":       job.JobID,
			"area":        job.Area,
			"action":      "open",
			"nonce":       job.Nonce,
			"expiresInMs": job.ExpiresInMs,
		})
	}
	nextPoll := nextPollIdleMs
	if len(jobs) > 0 {
		nextPoll = nextPollBusyMs
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"serverTime":   time.Now().UTC().Format(time.RFC3339),
		"jobs":         jobs,
		"nextPollInMs": nextPoll,
	})
}

func (h *Handler) deviceConfirm(w http.ResponseWriter, r *http.Request) {
	device, ok := deviceFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing device identity")
		return
	}

	var req deviceConfirmRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "device_confirm", err)
		return
	}
	if req.JobID <= 0 {
		writeValidationError(r.Context(), w, "device_confirm", errors.New("jobId must be positive"))
		return
	}
	if req.Nonce == "" {
		writeValidationError(r.Context(), w, "device_confirm", errors.New("nonce is required"))
		return
	}

	res, err := h.service.ConfirmJob(r.Context(), application.ConfirmRequest{
		DeviceID: device.DeviceID,
		JobID:    req.JobID,
		Nonce:    req.Nonce,
		OK:       req.OK,
		Message:  req.Message,
		Meta:     req.Meta,
	})
	if err != nil {
		writeMappedError(r.Context(), w, "device_confirm", err)
		return
	}

	result := string(res.Reason)
	if res.Accepted {
		result = "confirmed"
		if res.Status == domain.JobFailed {
			result = "confirmed_failed"
		}
	}
	h.service.RecordDoorEvent(r.Context(), domain.DoorLogEntry{
		MemberID:  res.MemberID,
		Area:      res.Area,
		Action:    "confirm",
		Result:    result,
		IP:        readIP(r),
		UserAgent: r.UserAgent(),
		Message:   req.Message,
		Context:   map[string]any{"jobId": req.JobID, "deviceId": device.DeviceID},
	})

	payload := map[string]any{
		"accepted": res.Accepted,
		"status":   string(res.Status),
	}
	if !res.Accepted {
		payload["error"] = string(res.Reason)
	}
	writeJSON(w, http.StatusOK, payload)
}
