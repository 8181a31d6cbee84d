package tasks

import (
	"net/http"

	"github.com/aliuyar1234/taskhub/internal/apperrors"
	"github.com/aliuyar1234/taskhub/internal/auth"
	"github.com/aliuyar1234/taskhub/internal/orgs"
	"github.com/aliuyar1234/taskhub/internal/validation"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// HandleList handles GET /api/tasks
func HandleList(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		orgID, err := orgs.OrgIDFromRequest(r)
		if err != nil {
			apperrors.WriteServiceError(w, r, err, "Invalid organization")
			return
		}

		tasks, err := svc.List(ctx, auth.GetUserID(ctx), orgID)
		if err != nil {
			apperrors.WriteServiceError(w, r, err, "Failed to list tasks")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, tasks)
	}
}

// HandleGet handles GET /api/tasks/{task_id}
func HandleGet(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		orgID, taskID, ok := scope(w, r)
		if !ok {
			return
		}

		task, err := svc.Get(ctx, auth.GetUserID(ctx), orgID, taskID)
		if err != nil {
			apperrors.WriteServiceError(w, r, err, "Failed to get task")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, task)
	}
}

// HandleCreate handles POST /api/tasks
func HandleCreate(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		orgID, err := orgs.OrgIDFromRequest(r)
		if err != nil {
			apperrors.WriteServiceError(w, r, err, "Invalid organization")
			return
		}

		var req CreateInput
		if err := validation.DecodeJSON(r, &req); err != nil {
			apperrors.WriteServiceError(w, r, err, "Invalid request body")
			return
		}

		task, err := svc.Create(ctx, auth.GetUserID(ctx), orgID, req)
		if err != nil {
			apperrors.WriteServiceError(w, r, err, "Failed to create task")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusCreated, task)
	}
}

// HandleUpdate handles PATCH /api/tasks/{task_id}
func HandleUpdate(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		orgID, taskID, ok := scope(w, r)
		if !ok {
			return
		}

		var req UpdateInput
		if err := validation.DecodeJSON(r, &req); err != nil {
			apperrors.WriteServiceError(w, r, err, "Invalid request body")
			return
		}

		task, err := svc.Update(ctx, auth.GetUserID(ctx), orgID, taskID, req)
		if err != nil {
			apperrors.WriteServiceError(w, r, err, "Failed to update task")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, task)
	}
}

// HandleDelete handles DELETE /api/tasks/{task_id}
func HandleDelete(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		orgID, taskID, ok := scope(w, r)
		if !ok {
			return
		}

		if err := svc.Delete(ctx, auth.GetUserID(ctx), orgID, taskID); err != nil {
			apperrors.WriteServiceError(w, r, err, "Failed to delete task")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"success": true,
		})
	}
}

func scope(w http.ResponseWriter, r *http.Request) (orgID, taskID uuid.UUID, ok bool) {
	orgID, err := orgs.OrgIDFromRequest(r)
	if err != nil {
		apperrors.WriteServiceError(w, r, err, "Invalid organization")
		return uuid.Nil, uuid.Nil, false
	}

	taskID, err = uuid.Parse(chi.URLParam(r, "task_id"))
	if err != nil {
		apperrors.WriteBadRequest(w, r, "Invalid task ID")
		return uuid.Nil, uuid.Nil, false
	}

	return orgID, taskID, true
}
