package api

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"github.com/teresa-solution/tenant-branding-service/internal/auth"
	"github.com/teresa-solution/tenant-branding-service/internal/model"
	"github.com/teresa-solution/tenant-branding-service/internal/notify"
)

const defaultMaxLogoBytes = 2 << 20

type createAdminRequest struct {
	Name            string `json:"name"`
	BusinessName    string `json:"business_name"`
	Phone           string `json:"phone"`
	Email           string `json:"email"`
	LoginMethod     string `json:"login_method"`
	CustomBrandName string `json:"custom_brand_name"`
}

func (req createAdminRequest) toModel() model.AdminProvisioningRequest {
	return model.AdminProvisioningRequest{
		Name:            req.Name,
		BusinessName:    req.BusinessName,
		Phone:           req.Phone,
		Email:           req.Email,
		LoginMethod:     model.LoginMethod(req.LoginMethod),
		CustomBrandName: req.CustomBrandName,
	}
}

// HandleCreateAdmin provisions an admin. It accepts JSON, or multipart form
// data with an optional "logo" file part.
func (s *Server) HandleCreateAdmin(w http.ResponseWriter, r *http.Request) {
	maxLogo := s.deps.MaxLogoBytes
	if maxLogo <= 0 {
		maxLogo = defaultMaxLogoBytes
	}

	var in model.AdminProvisioningRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		// room for the form fields on top of the logo
		if err := r.ParseMultipartForm(maxLogo + 1<<20); err != nil {
			respondError(w, ErrCodeBadRequest, "invalid multipart form", nil)
			return
		}
		in = createAdminRequest{
			Name:            r.FormValue("name"),
			BusinessName:    r.FormValue("business_name"),
			Phone:           r.FormValue("phone"),
			Email:           r.FormValue("email"),
			LoginMethod:     r.FormValue("login_method"),
			CustomBrandName: r.FormValue("custom_brand_name"),
		}.toModel()

		file, header, err := r.FormFile("logo")
		switch {
		case errors.Is(err, http.ErrMissingFile):
		case err != nil:
			respondError(w, ErrCodeBadRequest, "invalid logo upload", nil)
			return
		default:
			defer file.Close()
			// one byte over the limit is enough for validation to reject it
			data, err := io.ReadAll(io.LimitReader(file, maxLogo+1))
			if err != nil {
				respondError(w, ErrCodeBadRequest, "failed to read logo", nil)
				return
			}
			in.Logo = &model.LogoFile{
				Filename:    header.Filename,
				ContentType: header.Header.Get("Content-Type"),
				Data:        data,
			}
		}
	} else {
		var req createAdminRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, ErrCodeBadRequest, "invalid request body", nil)
			return
		}
		in = req.toModel()
	}

	userID, err := s.deps.Provisioner.Provision(r.Context(), in, invokerFrom(r.Context()))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"user_id": userID})
}

func (s *Server) HandleGetBranding(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.deps.Resolver.Resolve(r.Context(), chi.URLParam(r, "id")))
}

// HandleUpdateBranding merges branding into a tenant. With authentication
// configured only members of that tenant may write it.
func (s *Server) HandleUpdateBranding(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "id")
	if !s.authorize(w, r, func(inv model.InvokerCredentials) error {
		return auth.AuthorizeTenant(inv, tenantID)
	}) {
		return
	}

	var update model.BrandingUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		respondError(w, ErrCodeBadRequest, "invalid request body", nil)
		return
	}

	if err := s.deps.Mutator.Upsert(r.Context(), tenantID, update); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, s.deps.Resolver.Resolve(r.Context(), tenantID))
}

func (s *Server) HandleRegisterPushToken(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if !s.authorize(w, r, func(inv model.InvokerCredentials) error {
		return auth.AuthorizeUser(inv, userID)
	}) {
		return
	}

	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Token) == "" {
		respondError(w, ErrCodeBadRequest, "token is required", nil)
		return
	}

	added, err := s.deps.Tokens.Save(r.Context(), userID, strings.TrimSpace(req.Token))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"added": added})
}

// HandleSendNotification accepts the push endpoint's body shape
func (s *Server) HandleSendNotification(w http.ResponseWriter, r *http.Request) {
	var req notify.SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, ErrCodeBadRequest, "invalid request body", nil)
		return
	}

	id, err := s.deps.Notifier.Notify(r.Context(), req)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"notification_id": id})
}

func (s *Server) HandleWindowControl(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, ErrCodeBadRequest, "invalid request body", nil)
		return
	}

	var bridge notify.DesktopBridge
	if s.deps.Desktops != nil {
		bridge = s.deps.Desktops(chi.URLParam(r, "device"))
	}
	if err := notify.ControlWindow(bridge, req.Action); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"action": req.Action})
}

func (s *Server) HandleOpenSession(w http.ResponseWriter, r *http.Request) {
	if s.deps.Sessions == nil {
		// no desktop transport configured
		respondJSON(w, http.StatusOK, map[string]bool{"opened": false})
		return
	}

	var req struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, ErrCodeBadRequest, "invalid request body", nil)
		return
	}
	if req.UserID == "" {
		req.UserID = invokerFrom(r.Context()).UserID
	}
	if req.UserID == "" {
		respondError(w, ErrCodeValidationFailed, "user_id is required", map[string]string{"user_id": "required"})
		return
	}
	if !s.authorize(w, r, func(inv model.InvokerCredentials) error {
		return auth.AuthorizeUser(inv, req.UserID)
	}) {
		return
	}

	deviceID := chi.URLParam(r, "device")
	if _, err := s.deps.Sessions.Open(req.UserID, deviceID); err != nil {
		log.Error().Err(err).Str("device_id", deviceID).Msg("Failed to open desktop session")
		respondError(w, ErrCodeInternalError, "failed to open session", nil)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"opened": true})
}

// HandleCloseSession ends the session on a device. With authentication
// configured only the session's own user may end it.
func (s *Server) HandleCloseSession(w http.ResponseWriter, r *http.Request) {
	if s.deps.Sessions == nil {
		respondJSON(w, http.StatusOK, map[string]bool{"closed": false})
		return
	}

	deviceID := chi.URLParam(r, "device")
	session := s.deps.Sessions.Get(deviceID)
	if session == nil {
		respondJSON(w, http.StatusOK, map[string]bool{"closed": false})
		return
	}
	if !s.authorize(w, r, func(inv model.InvokerCredentials) error {
		return auth.AuthorizeUser(inv, session.UserID)
	}) {
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"closed": s.deps.Sessions.Close(deviceID)})
}
