package web

import (
	"net/http"
	"time"

	"github.com/nebulahq/nebula/types"
)

type createProgramReqBody struct {
	Slug        string   `json:"slug"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Modules     []string `json:"modules"`
	MaxStudents *int32   `json:"maxStudents"`
}

func (h *Handler) createProgram(w http.ResponseWriter, r *http.Request) {
	var reqBody createProgramReqBody
	if err := decodeJSON(r, &reqBody); err != nil {
		h.respondErr(w, err)
		return
	}

	created, err := h.Service.CreateProgram(r.Context(), types.CreateProgram{
		Slug:        reqBody.Slug,
		Title:       reqBody.Title,
		Description: reqBody.Description,
		Modules:     reqBody.Modules,
		MaxStudents: reqBody.MaxStudents,
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.respond(w, created, http.StatusCreated)
}

func (h *Handler) programs(w http.ResponseWriter, r *http.Request) {
	pageArgs, err := parsePageArgs(r.URL.Query())
	if err != nil {
		h.respondErr(w, err)
		return
	}

	page, err := h.Service.Programs(r.Context(), types.ListPrograms{PageArgs: pageArgs})
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.respond(w, page, http.StatusOK)
}

func (h *Handler) showProgram(w http.ResponseWriter, r *http.Request) {
	program, err := h.Service.Program(r.Context(), types.RetrieveProgram{
		Slug: r.PathValue("slug"),
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.respond(w, program, http.StatusOK)
}

func (h *Handler) deactivateProgram(w http.ResponseWriter, r *http.Request) {
	err := h.Service.DeactivateProgram(r.Context(), types.DeactivateProgram{
		ProgramID: r.PathValue("programID"),
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type createCohortReqBody struct {
	Name        string    `json:"name"`
	StartDate   time.Time `json:"startDate"`
	MaxStudents *int32    `json:"maxStudents"`
}

func (h *Handler) createCohort(w http.ResponseWriter, r *http.Request) {
	var reqBody createCohortReqBody
	if err := decodeJSON(r, &reqBody); err != nil {
		h.respondErr(w, err)
		return
	}

	created, err := h.Service.CreateCohort(r.Context(), types.CreateCohort{
		ProgramID:   r.PathValue("programID"),
		Name:        reqBody.Name,
		StartDate:   reqBody.StartDate,
		MaxStudents: reqBody.MaxStudents,
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.respond(w, created, http.StatusCreated)
}

type createUserReqBody struct {
	Email    string         `json:"email"`
	Username string         `json:"username"`
	Role     types.UserRole `json:"role"`
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var reqBody createUserReqBody
	if err := decodeJSON(r, &reqBody); err != nil {
		h.respondErr(w, err)
		return
	}

	user, err := h.Service.CreateUser(r.Context(), types.CreateUser{
		Email:    reqBody.Email,
		Username: reqBody.Username,
		Role:     reqBody.Role,
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.respond(w, user, http.StatusCreated)
}
