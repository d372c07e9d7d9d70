package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/stagepage/authkit"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type twoFactorRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type passwordRequest struct {
	Password string `json:"password"`
}

type verifyEmailRequest struct {
	Token string `json:"token"`
}

func decode(r *http.Request, dst interface{}) bool {
	return json.NewDecoder(r.Body).Decode(dst) == nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			writeErrorMessage(w, http.StatusServiceUnavailable, "Service unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCSRFToken(w http.ResponseWriter, _ *http.Request) {
	token, err := s.csrf.Issue()
	if err != nil {
		writeErrorMessage(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"csrfToken": token})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decode(r, &req) {
		writeErrorMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := s.engine.Register(r.Context(), authkit.Signup{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	s.setAuthCookies(w, r, result)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"user":         result.User,
		"accessToken":  result.AccessToken,
		"refreshToken": result.RefreshToken,
		"sessionId":    result.SessionID,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(r, &req) {
		writeErrorMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := s.engine.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.metrics.logins.WithLabelValues("failure").Inc()
		writeError(w, err)
		return
	}

	if result.TwoFactorRequired {
		s.metrics.logins.WithLabelValues("two_factor_pending").Inc()
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"requiresTwoFactor": true,
			"userId":            result.User.ID,
			"codeSent":          true,
		})
		return
	}

	s.metrics.logins.WithLabelValues("success").Inc()
	s.setAuthCookies(w, r, result)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user":         result.User,
		"accessToken":  result.AccessToken,
		"refreshToken": result.RefreshToken,
		"sessionId":    result.SessionID,
	})
}

func (s *Server) handleTwoFactorVerify(w http.ResponseWriter, r *http.Request) {
	var req twoFactorRequest
	if !decode(r, &req) {
		writeErrorMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := s.engine.CompleteTwoFactor(r.Context(), req.Email, req.Code)
	if err != nil {
		s.metrics.twoFactor.WithLabelValues("failure").Inc()
		writeError(w, err)
		return
	}

	s.metrics.twoFactor.WithLabelValues("success").Inc()
	s.metrics.logins.WithLabelValues("success").Inc()
	s.setAuthCookies(w, r, result)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user":         result.User,
		"accessToken":  result.AccessToken,
		"refreshToken": result.RefreshToken,
		"sessionId":    result.SessionID,
	})
}

func (s *Server) handleTwoFactorResend(w http.ResponseWriter, r *http.Request) {
	var req twoFactorRequest
	if !decode(r, &req) {
		writeErrorMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := s.engine.ResendTwoFactorCode(r.Context(), req.Email); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Verification code sent"})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	token := ""
	if c, err := r.Cookie(refreshCookie); err == nil {
		token = c.Value
	}
	if token == "" {
		s.metrics.refreshes.WithLabelValues("invalid").Inc()
		writeErrorMessage(w, http.StatusBadRequest, "Refresh token not provided")
		return
	}

	result, err := s.engine.Refresh(r.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, authkit.ErrRefreshReuse), errors.Is(err, authkit.ErrDeviceMismatch):
			s.metrics.refreshes.WithLabelValues("compromise_detected").Inc()
		default:
			s.metrics.refreshes.WithLabelValues("invalid").Inc()
		}
		s.clearAuthCookies(w, r)
		writeError(w, err)
		return
	}

	s.metrics.refreshes.WithLabelValues("success").Inc()
	s.setAuthCookies(w, r, result)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user":        result.User,
		"accessToken": result.AccessToken,
		"sessionId":   result.SessionID,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	if err := s.engine.Logout(r.Context(), id.UserID, id.SessionID); err != nil {
		writeError(w, err)
		return
	}
	s.clearAuthCookies(w, r)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	view, err := s.engine.CurrentSession(r.Context(), id.UserID, id.SessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"session": view})
}

func (s *Server) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req verifyEmailRequest
	if !decode(r, &req) {
		writeErrorMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := s.engine.VerifyEmail(r.Context(), req.Token); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Email verified"})
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if !decode(r, &req) {
		writeErrorMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	id, _ := identityFrom(r.Context())
	err := s.engine.ChangePassword(r.Context(), id.UserID, id.SessionID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password changed"})
}

func (s *Server) handleTwoFactorEnable(w http.ResponseWriter, r *http.Request) {
	s.handleTwoFactorSet(w, r, true)
}

func (s *Server) handleTwoFactorDisable(w http.ResponseWriter, r *http.Request) {
	s.handleTwoFactorSet(w, r, false)
}

func (s *Server) handleTwoFactorSet(w http.ResponseWriter, r *http.Request, enabled bool) {
	var req passwordRequest
	if !decode(r, &req) {
		writeErrorMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	id, _ := identityFrom(r.Context())
	user, err := s.engine.SetTwoFactor(r.Context(), id.UserID, req.Password, enabled)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"user": user})
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	result, err := s.engine.Sessions(r.Context(), id.UserID, id.SessionID, page, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	sessionID := mux.Vars(r)["sessionId"]

	if err := s.engine.EndSession(r.Context(), id.UserID, sessionID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Session ended"})
}

func (s *Server) handleEndOtherSessions(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	count, err := s.engine.EndOtherSessions(r.Context(), id.UserID, id.SessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"endedCount": count})
}
