package handler

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"reimburse/internal/api/middleware"
	"reimburse/internal/app/attachment"
	"reimburse/internal/app/service"
	"reimburse/internal/common"
	"reimburse/internal/domain/policy"
)

// Form keys that may carry receipt files.
var attachmentFields = []string{"attachment", "attachments", "attachment[]"}

const multipartMemory = 8 << 20

type ExpenseHandler struct {
	expenseService *service.ExpenseService
	maxBody        int64
}

// NewExpenseHandler limits a creation request body to maxBody bytes.
func NewExpenseHandler(es *service.ExpenseService, maxBody int64) *ExpenseHandler {
	if maxBody <= 0 {
		maxBody = attachment.DefaultMaxFiles*attachment.DefaultMaxBytes + 1<<20
	}
	return &ExpenseHandler{expenseService: es, maxBody: maxBody}
}

func (h *ExpenseHandler) RegisterRoutes(r chi.Router) {
	r.Use(middleware.Authenticator) // All expense routes require auth
	r.With(middleware.Allow(policy.OpCreateOwn)).Post("/", h.createRequest)
	r.With(middleware.Allow(policy.OpListOwn)).Get("/my", h.listMine)
	r.With(middleware.Allow(policy.OpListAll)).Get("/all", h.listAll)
	r.Get("/{id}", h.getRequest)
	r.With(middleware.Allow(policy.OpChangeStatus)).Put("/{id}/status", h.changeStatus)
}

func (h *ExpenseHandler) createRequest(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			common.RespondWithError(w, r, common.Errorf("request body too large: %w", common.ErrPayloadTooLarge))
			return
		}
		common.RespondWithError(w, r, common.Errorf("expected a multipart/form-data body: %w", common.ErrInvalidInput))
		return
	}
	defer r.MultipartForm.RemoveAll()

	uploads, closeAll, err := collectUploads(r.MultipartForm)
	defer closeAll()
	if err != nil {
		common.RespondWithError(w, r, err)
		return
	}

	req, err := h.expenseService.CreateRequest(r.Context(), p, service.CreateExpenseRequest{
		Amount:   r.FormValue("amount"),
		Currency: r.FormValue("currency"),
		Reason:   r.FormValue("reason"),
		Files:    uploads,
	})
	if err != nil {
		common.RespondWithError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, req)
}

// collectUploads opens every attached file in form order. The returned func
// closes whatever was opened.
func collectUploads(form *multipart.Form) ([]attachment.Upload, func(), error) {
	var (
		uploads []attachment.Upload
		opened  []multipart.File
	)
	closeAll := func() {
		for _, f := range opened {
			f.Close()
		}
	}
	for _, field := range attachmentFields {
		for _, fh := range form.File[field] {
			f, err := fh.Open()
			if err != nil {
				return nil, closeAll, common.Errorf("read attachment %q: %w", fh.Filename, common.ErrInvalidInput)
			}
			opened = append(opened, f)
			uploads = append(uploads, attachment.Upload{
				OriginalName: fh.Filename,
				DeclaredType: fh.Header.Get("Content-Type"),
				Size:         fh.Size,
				Content:      f,
			})
		}
	}
	return uploads, closeAll, nil
}

func (h *ExpenseHandler) listMine(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFromContext(r.Context())
	reqs, err := h.expenseService.ListMine(r.Context(), p)
	if err != nil {
		common.RespondWithError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, reqs)
}

func (h *ExpenseHandler) listAll(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFromContext(r.Context())
	reqs, err := h.expenseService.ListAll(r.Context(), p, r.URL.Query().Get("status"))
	if err != nil {
		common.RespondWithError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, reqs)
}

func (h *ExpenseHandler) getRequest(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFromContext(r.Context())
	req, err := h.expenseService.GetRequest(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		common.RespondWithError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, req)
}

func (h *ExpenseHandler) changeStatus(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFromContext(r.Context())
	var body struct {
		Status string `json:"status"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.Status) == "" {
		common.RespondWithError(w, r, common.Errorf("status is required: %w", common.ErrInvalidInput))
		return
	}
	req, err := h.expenseService.ChangeStatus(r.Context(), p, chi.URLParam(r, "id"), body.Status)
	if err != nil {
		common.RespondWithError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, req)
}
