package services

import (
	"context"
	"net/http"
	"time"

	"github.com/campusconnect/backend/internal/audit"
	"github.com/campusconnect/backend/internal/authz"
	"github.com/campusconnect/backend/internal/models"
	"github.com/campusconnect/backend/internal/notify"
	"github.com/campusconnect/backend/internal/security"
	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

// JobPosters may publish job opportunities.
var JobPosters = []models.Role{models.RoleAlumni, models.RoleCollegeAdmin, models.RoleSystemAdmin}

type JobService struct {
	jobs      JobRepository
	users     UserRepository
	audit     *audit.Recorder
	fanout    *notify.Fanout
	validator *ValidationHelper
	log       logrus.FieldLogger
	now       func() time.Time
}

type JobRequest struct {
	Title       string     `json:"title" validate:"required,max=200" example:"Junior Backend Engineer"`
	Company     string     `json:"company" validate:"required,max=200" example:"Acme Ltd"`
	Description string     `json:"description" validate:"max=10000"`
	Location    string     `json:"location" validate:"max=200" example:"Dar es Salaam"`
	Link        string     `json:"link" validate:"omitempty,url,max=2048"`
	Tags        []string   `json:"tags" validate:"max=50,dive,min=1,max=50"`
	TargetRoles []string   `json:"targetRoles" validate:"max=5,dive,role"`
	Colleges    []string   `json:"colleges" validate:"max=50,dive,min=1,max=100"`
	ExpiresAt   *time.Time `json:"expiresAt"`
}

type JobPatch struct {
	Title       *string    `json:"title" validate:"omitempty,min=1,max=200"`
	Company     *string    `json:"company" validate:"omitempty,min=1,max=200"`
	Description *string    `json:"description" validate:"omitempty,max=10000"`
	Location    *string    `json:"location" validate:"omitempty,max=200"`
	Link        *string    `json:"link" validate:"omitempty,url,max=2048"`
	Tags        *[]string  `json:"tags" validate:"omitempty,max=50,dive,min=1,max=50"`
	TargetRoles *[]string  `json:"targetRoles" validate:"omitempty,max=5,dive,role"`
	Colleges    *[]string  `json:"colleges" validate:"omitempty,max=50,dive,min=1,max=100"`
	IsActive    *bool      `json:"isActive"`
	ExpiresAt   *time.Time `json:"expiresAt"`
}

func NewJobService(jobs JobRepository, users UserRepository, recorder *audit.Recorder, fanout *notify.Fanout, log logrus.FieldLogger) *JobService {
	return &JobService{
		jobs:      jobs,
		users:     users,
		audit:     recorder,
		fanout:    fanout,
		validator: NewValidationHelper(),
		log:       log.WithField("component", "jobs"),
		now:       time.Now,
	}
}

// List returns open postings
// @Summary List job opportunities
// @Tags jobs
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size, at most 100"
// @Param offset query int false "Offset"
// @Success 200 {array} models.Job
// @Failure 401 {object} ErrorResponse
// @Router /jobs [get]
func (s *JobService) List(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.jobs.ListActive(r.Context(), s.now(), pageFromQuery(r))
	if err != nil {
		writeStoreError(w, s.log, err, "Job")
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

// Get returns one posting
// @Summary Get a job opportunity
// @Tags jobs
// @Produce json
// @Security BearerAuth
// @Param id path string true "Job ID"
// @Success 200 {object} models.Job
// @Failure 404 {object} ErrorResponse
// @Router /jobs/{id} [get]
func (s *JobService) Get(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, s.log, err, "Job")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// Create posts a job and notifies alumni
// @Summary Post a job opportunity
// @Tags jobs
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body JobRequest true "Posting"
// @Success 201 {object} models.Job
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /jobs [post]
func (s *JobService) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, s.users, s.log)
	if !ok {
		return
	}

	var req JobRequest
	if !bind(w, r, s.validator, s.log, &req) {
		return
	}
	colleges, ok := s.scope(w, user, req.Colleges)
	if !ok {
		return
	}

	job := &models.Job{
		Title:       req.Title,
		Company:     req.Company,
		Description: req.Description,
		Location:    req.Location,
		Link:        req.Link,
		Tags:        orEmpty(req.Tags),
		TargetRoles: orEmpty(req.TargetRoles),
		Colleges:    colleges,
		PostedBy:    user.ID,
		IsActive:    true,
		ExpiresAt:   req.ExpiresAt,
	}
	if err := s.jobs.Create(r.Context(), job); err != nil {
		writeStoreError(w, s.log, err, "Job")
		return
	}

	s.record(r, user, audit.ActionCreate, job)
	posted := *job
	s.fanout.Background(func(ctx context.Context) {
		s.fanout.NotifyJob(ctx, &posted)
	})
	writeJSON(w, http.StatusCreated, job)
}

// Update changes a posting
// @Summary Update a job opportunity
// @Tags jobs
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Job ID"
// @Param request body JobPatch true "Fields to change"
// @Success 200 {object} models.Job
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /jobs/{id} [patch]
func (s *JobService) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, s.users, s.log)
	if !ok {
		return
	}

	var patch JobPatch
	if !bind(w, r, s.validator, s.log, &patch) {
		return
	}

	job, ok := s.modifiable(w, r, user)
	if !ok {
		return
	}
	if patch.Colleges != nil {
		colleges, ok := s.scope(w, user, *patch.Colleges)
		if !ok {
			return
		}
		patch.Colleges = &colleges
	}
	patch.apply(job)

	if err := s.jobs.Update(r.Context(), job); err != nil {
		writeStoreError(w, s.log, err, "Job")
		return
	}
	s.record(r, user, audit.ActionUpdate, job)
	writeJSON(w, http.StatusOK, job)
}

// Delete removes a posting
// @Summary Delete a job opportunity
// @Tags jobs
// @Produce json
// @Security BearerAuth
// @Param id path string true "Job ID"
// @Success 200 {object} MessageResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /jobs/{id} [delete]
func (s *JobService) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, s.users, s.log)
	if !ok {
		return
	}

	job, ok := s.modifiable(w, r, user)
	if !ok {
		return
	}
	if err := s.jobs.Delete(r.Context(), job.ID); err != nil {
		writeStoreError(w, s.log, err, "Job")
		return
	}
	s.record(r, user, audit.ActionDelete, job)
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Job deleted"})
}

// scope returns the colleges a posting by user may target. A college admin's posting
// with no colleges is scoped to their own college.
func (s *JobService) scope(w http.ResponseWriter, user *models.User, colleges []string) ([]string, bool) {
	caller := authz.CallerFromUser(user)
	if caller.Role == models.RoleCollegeAdmin && len(colleges) == 0 {
		colleges = []string{caller.College}
	}
	if err := authz.Authorize(caller, JobPosters, colleges...); err != nil {
		s.log.WithFields(logrus.Fields{"user_id": user.ID, "colleges": colleges}).Warn("Job posting outside own college rejected")
		writeStoreError(w, s.log, err, "Job")
		return nil, false
	}
	return orEmpty(colleges), true
}

func (s *JobService) modifiable(w http.ResponseWriter, r *http.Request, user *models.User) (*models.Job, bool) {
	job, err := s.jobs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, s.log, err, "Job")
		return nil, false
	}
	if !authz.CanModify(authz.CallerFromUser(user), job.PostedBy, job.Colleges) {
		writeStoreError(w, s.log, authz.ErrForbidden, "Job")
		return nil, false
	}
	return job, true
}

func (s *JobService) record(r *http.Request, user *models.User, action string, job *models.Job) {
	s.audit.RecordBestEffort(r.Context(), audit.Event{
		Actor:          audit.Actor{ID: user.ID, Role: string(user.Role)},
		Action:         action,
		TargetResource: "jobs",
		TargetID:       job.ID,
		Details:        map[string]string{"title": job.Title, "company": job.Company},
		IP:             security.ClientIP(r),
	})
}

func (p JobPatch) apply(j *models.Job) {
	if p.Title != nil {
		j.Title = *p.Title
	}
	if p.Company != nil {
		j.Company = *p.Company
	}
	if p.Description != nil {
		j.Description = *p.Description
	}
	if p.Location != nil {
		j.Location = *p.Location
	}
	if p.Link != nil {
		j.Link = *p.Link
	}
	if p.Tags != nil {
		j.Tags = orEmpty(*p.Tags)
	}
	if p.TargetRoles != nil {
		j.TargetRoles = orEmpty(*p.TargetRoles)
	}
	if p.Colleges != nil {
		j.Colleges = orEmpty(*p.Colleges)
	}
	if p.IsActive != nil {
		j.IsActive = *p.IsActive
	}
	if p.ExpiresAt != nil {
		j.ExpiresAt = p.ExpiresAt
	}
}
