package api

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"sax-estudios/internal/checkout"
	"sax-estudios/internal/intake"
	"sax-estudios/internal/payment"
	"sax-estudios/internal/storage"
)

const (
	cvField         = "cv"
	multipartMemory = 8 << 20
)

type submitResponse struct {
	OK    bool   `json:"ok"`
	DocID string `json:"docId"`
	CVURL string `json:"cvUrl"`
}

func (h *handler) submit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	values, upload, cleanup, err := readSubmission(r)
	if cleanup != nil {
		defer cleanup()
	}
	if err != nil {
		var verr *intake.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, verr.Error())
			return
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusBadRequest, "archivo demasiado grande")
			return
		}
		writeError(w, http.StatusBadRequest, "formulario inválido")
		return
	}

	form, err := intake.ParseForm(values)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.svc.Intake.Submit(r.Context(), intake.Request{
		Form:    form,
		File:    upload,
		Context: requestContext(r),
	})
	if err != nil {
		var verr *intake.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, verr.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "submit failed", "request_id", requestIDFromContext(r.Context()), "error", err)
		writeError(w, http.StatusInternalServerError, "error al guardar la solicitud")
		return
	}
	writeJSON(w, http.StatusOK, submitResponse{OK: true, DocID: res.SubmissionID, CVURL: res.CVURL})
}

// readSubmission 读取 multipart 或 urlencoded 表单，cleanup 负责关闭文件并删除临时文件。
func readSubmission(r *http.Request) (map[string][]string, *intake.Upload, func(), error) {
	err := r.ParseMultipartForm(multipartMemory)
	if errors.Is(err, http.ErrNotMultipart) {
		if err := r.ParseForm(); err != nil {
			return nil, nil, nil, err
		}
		return r.PostForm, nil, nil, nil
	}
	if err != nil {
		return nil, nil, nil, err
	}

	mf := r.MultipartForm
	cleanup := func() { _ = mf.RemoveAll() }
	for name := range mf.File {
		if name != cvField {
			return nil, nil, cleanup, &intake.ValidationError{Field: name, Reason: "unknown file field"}
		}
	}
	files := mf.File[cvField]
	if len(files) == 0 || files[0].Size == 0 {
		return mf.Value, nil, cleanup, nil
	}
	fh := files[0]
	f, err := fh.Open()
	if err != nil {
		return nil, nil, cleanup, err
	}
	cleanup = func() {
		_ = f.Close()
		_ = mf.RemoveAll()
	}
	upload := &intake.Upload{Filename: fh.Filename, ContentType: fh.Header.Get("Content-Type"), Body: f}
	return mf.Value, upload, cleanup, nil
}

func requestContext(r *http.Request) map[string]string {
	ip := r.RemoteAddr
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		ip = strings.TrimSpace(strings.Split(fwd, ",")[0])
	} else if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		ip = host
	}
	return map[string]string{
		"ip":        ip,
		"userAgent": r.UserAgent(),
		"referer":   r.Referer(),
	}
}

type checkoutResponse struct {
	CheckoutURL string `json:"checkoutUrl"`
}

func (h *handler) checkout(w http.ResponseWriter, r *http.Request) {
	var req checkout.Request
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	res, err := h.svc.Checkout.Start(r.Context(), req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, checkoutResponse{CheckoutURL: res.CheckoutURL})
	case errors.Is(err, checkout.ErrMissingFields):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "solicitud no encontrada")
	case errors.Is(err, checkout.ErrAlreadyPaid):
		writeError(w, http.StatusConflict, "la solicitud ya fue pagada")
	default:
		h.logger.ErrorContext(r.Context(), "checkout failed", "request_id", requestIDFromContext(r.Context()), "doc_id", req.DocID, "error", err)
		writeError(w, http.StatusInternalServerError, "error al crear la sesión de pago")
	}
}

// webhook 只有在签名通过且状态写入成功后才返回 200，存储失败返回 500 让服务商重发。
func (h *handler) webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "cannot read body", http.StatusBadRequest)
		return
	}

	ev, err := h.svc.Verifier.Verify(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.logger.WarnContext(r.Context(), "webhook verification failed", "request_id", requestIDFromContext(r.Context()), "error", err)
		http.Error(w, "Webhook Error: invalid signature", http.StatusBadRequest)
		return
	}

	outcome, err := h.svc.Payments.Handle(r.Context(), ev)
	switch {
	case errors.Is(err, payment.ErrMissingSubmission):
		http.Error(w, "missing docId", http.StatusBadRequest)
		return
	case err != nil:
		h.logger.ErrorContext(r.Context(), "webhook processing failed", "event_id", ev.ID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.logger.DebugContext(r.Context(), "webhook processed", "event_id", ev.ID, "outcome", outcome)
	w.WriteHeader(http.StatusOK)
}

func (h *handler) getClient(w http.ResponseWriter, r *http.Request) {
	ov, err := h.svc.Admin.Get(r.Context(), chi.URLParam(r, "clientId"))
	if err != nil {
		h.adminError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ov)
}

func (h *handler) removeSubmission(w http.ResponseWriter, r *http.Request) {
	clientID, docID := chi.URLParam(r, "clientId"), chi.URLParam(r, "docId")
	res, err := h.svc.Admin.RemoveSubmission(r.Context(), clientID, docID)
	if err != nil {
		h.adminError(w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "admin removed submission", "admin", adminSubject(r.Context()), "client_id", clientID, "doc_id", docID)
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) removeClient(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientId")
	res, err := h.svc.Admin.RemoveClient(r.Context(), clientID)
	if err != nil {
		h.adminError(w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "admin removed client", "admin", adminSubject(r.Context()), "client_id", clientID)
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) adminError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	h.logger.ErrorContext(r.Context(), "admin operation failed", "request_id", requestIDFromContext(r.Context()), "error", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}
