package httpapi

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/directoryhub/onboarding-api/internal/app/completion"
	"github.com/directoryhub/onboarding-api/internal/app/onboarding"
	"github.com/directoryhub/onboarding-api/internal/domain"
	"github.com/directoryhub/onboarding-api/internal/ports/out/idempotency"
	"github.com/directoryhub/onboarding-api/internal/ports/out/profilestore"
)

const maxBodyBytes = 1 << 20

// Server adapts HTTP requests to the onboarding service.
type Server struct {
	Onboarding *onboarding.Service
	Idem       idempotency.Store

	log *zap.Logger
}

func NewServer(svc *onboarding.Service, idem idempotency.Store, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{Onboarding: svc, Idem: idem, log: log}
}

func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	who, ok := s.identity(w, r)
	if !ok {
		return
	}
	sess, err := s.Onboarding.Resume(r.Context(), who)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.writeSession(w, r, who, sess)
}

func (s *Server) SelectRole(w http.ResponseWriter, r *http.Request) {
	who, ok := s.identity(w, r)
	if !ok {
		return
	}
	var body SelectRoleRequest
	if !decodeBody(w, r, &body) {
		return
	}
	sess, err := s.Onboarding.SelectRole(r.Context(), who, body.Role)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.writeSession(w, r, who, sess)
}

func (s *Server) SubmitBasicInfo(w http.ResponseWriter, r *http.Request) {
	who, ok := s.identity(w, r)
	if !ok {
		return
	}
	var body ValuesRequest
	if !decodeBody(w, r, &body) {
		return
	}
	sess, err := s.Onboarding.SubmitBasicInfo(r.Context(), who, domain.Values(body.Values))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.writeSession(w, r, who, sess)
}

func (s *Server) SubmitRoleDetails(w http.ResponseWriter, r *http.Request) {
	who, ok := s.identity(w, r)
	if !ok {
		return
	}
	var body RoleDetailsRequest
	if !decodeBody(w, r, &body) {
		return
	}
	in := onboarding.RoleDetailsInput{
		Values:         domain.Values(body.Values),
		RetirePrevious: body.RetirePrevious,
	}
	if strings.TrimSpace(body.Role) != "" {
		role, err := domain.ParseRole(body.Role)
		if err != nil {
			writeError(w, r, http.StatusUnprocessableEntity, onboarding.CodeUnknownRole, "unknown role", map[string]any{"role": body.Role})
			return
		}
		in.Role = role
	}
	sess, err := s.Onboarding.SubmitRoleDetails(r.Context(), who, in)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.writeSession(w, r, who, sess)
}

func (s *Server) Back(w http.ResponseWriter, r *http.Request) {
	who, ok := s.identity(w, r)
	if !ok {
		return
	}
	var body BackRequest
	if !decodeBody(w, r, &body) {
		return
	}
	from, err := domain.ParseStep(body.From)
	if err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, onboarding.CodeValidation, "unknown step", map[string]any{"from": body.From})
		return
	}
	sess, err := s.Onboarding.Back(r.Context(), who, from)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.writeSession(w, r, who, sess)
}

func (s *Server) GetReview(w http.ResponseWriter, r *http.Request) {
	who, ok := s.identity(w, r)
	if !ok {
		return
	}
	view, err := s.Onboarding.Review(r.Context(), who)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reviewFromApp(view))
}

// Complete confirms the review. Retries carrying the same Idempotency-Key and body replay the
// stored response; the same key with a different body is rejected.
func (s *Server) Complete(w http.ResponseWriter, r *http.Request) {
	who, ok := s.identity(w, r)
	if !ok {
		return
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "BAD_REQUEST", "could not read request body", nil)
		return
	}
	bodyHash := hashBody(raw)

	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	metaFP := idempotency.Fingerprint{
		Key:      idempotency.Key(key),
		Identity: who.ID,
		Method:   http.MethodPost,
		Route:    "/onboarding/complete",
		BodyHash: "",
	}
	useIdem := s.Idem != nil && key != ""
	if useIdem {
		meta, found, err := s.Idem.Get(r.Context(), metaFP)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		if found {
			if string(meta.Body) != bodyHash {
				writeError(w, r, http.StatusConflict, "IDEMPOTENCY_KEY_REUSE", "idempotency key reuse with different payload", nil)
				return
			}
		} else {
			_ = s.Idem.Put(r.Context(), metaFP, idempotency.Record{
				StatusCode:  0,
				ContentType: "text/plain",
				Body:        []byte(bodyHash),
				CreatedAt:   time.Now().UTC(),
			})
		}

		respFP := metaFP
		respFP.BodyHash = bodyHash
		if rec, found, err := s.Idem.Get(r.Context(), respFP); err != nil {
			s.writeAppError(w, r, err)
			return
		} else if found && rec.StatusCode == http.StatusOK && strings.HasPrefix(rec.ContentType, "application/json") {
			w.Header().Set("Content-Type", rec.ContentType)
			w.Header().Set("Idempotent-Replayed", "true")
			w.WriteHeader(rec.StatusCode)
			_, _ = w.Write(rec.Body)
			return
		}
	}

	res, err := s.Onboarding.Confirm(r.Context(), who)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	if res.Outcome == completion.OutcomeFailure {
		s.writeCompletionFailure(w, r, who, res)
		return
	}

	payload, err := json.Marshal(completionFromApp(res))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	if useIdem {
		respFP := metaFP
		respFP.BodyHash = bodyHash
		_ = s.Idem.Put(r.Context(), respFP, idempotency.Record{
			StatusCode:  http.StatusOK,
			ContentType: "application/json",
			Body:        payload,
			CreatedAt:   time.Now().UTC(),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func (s *Server) BeginEdit(w http.ResponseWriter, r *http.Request) {
	who, ok := s.identity(w, r)
	if !ok {
		return
	}
	sess, err := s.Onboarding.BeginEdit(r.Context(), who)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.writeSession(w, r, who, sess)
}

func (s *Server) RetireExtension(w http.ResponseWriter, r *http.Request) {
	who, ok := s.identity(w, r)
	if !ok {
		return
	}
	sess, err := s.Onboarding.RetireRole(r.Context(), who, chi.URLParam(r, "role"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.writeSession(w, r, who, sess)
}

func (s *Server) GetProfileStatus(w http.ResponseWriter, r *http.Request) {
	who, ok := s.identity(w, r)
	if !ok {
		return
	}
	st, err := s.Onboarding.Status(r.Context(), who)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusFromApp(st))
}

func (s *Server) identity(w http.ResponseWriter, r *http.Request) (domain.Identity, bool) {
	who, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing identity", nil)
	}
	return who, ok
}

// writeSession renders a transition result. A rejected transition carries field errors and
// is reported as 422 with the unchanged step.
func (s *Server) writeSession(w http.ResponseWriter, r *http.Request, who domain.Identity, sess onboarding.Session) {
	if len(sess.FieldErrors) > 0 {
		writeError(w, r, http.StatusUnprocessableEntity, onboarding.CodeValidation, "some fields need attention", fieldErrorDetails(sess.Step, sess.FieldErrors))
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{Session: sessionFromApp(sess, who)})
}

func (s *Server) writeCompletionFailure(w http.ResponseWriter, r *http.Request, who domain.Identity, res onboarding.CompletionResult) {
	if len(res.FieldErrors) > 0 {
		writeError(w, r, http.StatusUnprocessableEntity, onboarding.CodeValidation, res.Message, fieldErrorDetails(res.Step, res.FieldErrors))
		return
	}
	status := http.StatusConflict
	if errors.Is(res.Err, profilestore.ErrUnavailable) {
		status = http.StatusServiceUnavailable
	}
	details := map[string]any{
		"step": res.Step.String(),
		"tier": string(res.Tier),
	}
	if res.Reason != "" {
		details["reason"] = res.Reason
	}
	s.log.Warn("completion failed",
		zap.String("identity_id", string(who.ID)),
		zap.String("tier", string(res.Tier)),
		zap.Error(res.Err),
	)
	writeError(w, r, status, onboarding.CodeCompletionFailed, res.Message, details)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil {
		writeError(w, r, http.StatusUnprocessableEntity, onboarding.CodeValidation, "missing request body", nil)
		return false
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "BAD_REQUEST", "could not read request body", nil)
		return false
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		writeError(w, r, http.StatusUnprocessableEntity, onboarding.CodeValidation, "missing request body", nil)
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, onboarding.CodeValidation, "invalid JSON body", nil)
		return false
	}
	return true
}

func hashBody(raw []byte) string {
	sum := sha256.Sum256(bytes.TrimSpace(raw))
	return hex.EncodeToString(sum[:])
}
