package web

import (
	"net/http"
	"time"

	"github.com/nebulahq/nebula/types"
)

type enrollReqBody struct {
	CoachID *string    `json:"coachId"`
	Date    *time.Time `json:"date"`
}

func (h *Handler) enroll(w http.ResponseWriter, r *http.Request) {
	var reqBody enrollReqBody
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &reqBody); err != nil {
			h.respondErr(w, err)
			return
		}
	}

	enrolled, err := h.Service.EnrollInProgram(r.Context(), types.EnrollInProgram{
		ProgramSlug: r.PathValue("slug"),
		CoachID:     reqBody.CoachID,
		Date:        reqBody.Date,
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.respond(w, enrolled, http.StatusCreated)
}

func (h *Handler) enrollments(w http.ResponseWriter, r *http.Request) {
	var status *types.EnrollmentStatus
	if s := r.URL.Query().Get("status"); s != "" {
		v := types.EnrollmentStatus(s)
		status = &v
	}

	enrollments, err := h.Service.StudentEnrollments(r.Context(), types.ListEnrollments{
		Status: status,
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.respond(w, enrollments, http.StatusOK)
}

type updateProgressReqBody struct {
	Progress int32 `json:"progress"`
}

func (h *Handler) updateEnrollmentProgress(w http.ResponseWriter, r *http.Request) {
	var reqBody updateProgressReqBody
	if err := decodeJSON(r, &reqBody); err != nil {
		h.respondErr(w, err)
		return
	}

	enrollment, err := h.Service.UpdateEnrollmentProgress(r.Context(), types.UpdateEnrollmentProgress{
		EnrollmentID: r.PathValue("enrollmentID"),
		Progress:     reqBody.Progress,
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.respond(w, enrollment, http.StatusOK)
}
