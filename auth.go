// auth.go - single-admin session auth
package main

import (
	"encoding/gob"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"portscope/common"
	"portscope/middleware"

	"github.com/alexedwards/scs/v2"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	gob.Register(middleware.User{}) // ensure scs can (de)serialize User
}

const cookieMaxAge = 7 * 24 * time.Hour

var adminPasswordHash []byte

// InitAuthFromEnv configures the session manager and the admin credential.
// With PORTSCOPE_AUTH_ENABLE=false the returned manager is nil and the API
// runs unauthenticated (the middleware passes everything through).
func InitAuthFromEnv() (*scs.SessionManager, error) {
	if !common.EnvBool("PORTSCOPE_AUTH_ENABLE", "true") {
		warnLog("auth: disabled (PORTSCOPE_AUTH_ENABLE=false); API is unauthenticated")
		return nil, nil
	}

	hash, err := common.ReadSecretMaybeFile(common.Env("PORTSCOPE_ADMIN_PASSWORD_HASH", ""))
	if err != nil {
		return nil, err
	}
	if hash != "" {
		adminPasswordHash = []byte(hash)
	} else {
		plain, err := common.ReadSecretMaybeFile(common.Env("PORTSCOPE_ADMIN_PASSWORD", ""))
		if err != nil {
			return nil, err
		}
		if plain == "" {
			return nil, errors.New("auth enabled but neither PORTSCOPE_ADMIN_PASSWORD_HASH nor PORTSCOPE_ADMIN_PASSWORD is set")
		}
		adminPasswordHash, err = bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
	}

	sm := scs.New()
	sm.Lifetime = cookieMaxAge
	sm.Cookie.Name = common.SessionName
	sm.Cookie.HttpOnly = true
	sm.Cookie.SameSite = http.SameSiteLaxMode
	sm.Cookie.Secure = common.EnvBool("PORTSCOPE_SECURE_COOKIES", "true")
	if d := strings.TrimSpace(common.Env("PORTSCOPE_COOKIE_DOMAIN", "")); d != "" {
		sm.Cookie.Domain = d
	}

	common.SessionManager = sm
	return sm, nil
}

// LoginHandler checks the admin password and establishes a session.
func LoginHandler(w http.ResponseWriter, r *http.Request) {
	if common.SessionManager == nil {
		http.Error(w, "auth disabled", http.StatusNotFound)
		return
	}

	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	if bcrypt.CompareHashAndPassword(adminPasswordHash, []byte(body.Password)) != nil {
		// constant failure shape regardless of which part mismatched
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	name := strings.TrimSpace(body.Username)
	if name == "" {
		name = "admin"
	}

	if err := common.SessionManager.RenewToken(r.Context()); err != nil {
		http.Error(w, "session error", http.StatusInternalServerError)
		return
	}
	common.SessionManager.Put(r.Context(), "user", middleware.User{Name: name})
	common.SessionManager.Put(r.Context(), "exp", time.Now().Add(cookieMaxAge).Unix())

	infoLog("auth: login user=%s", name)
	common.RespondJSON(w, map[string]any{"success": true, "user": name})
}

// LogoutHandler destroys the current session.
func LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if common.SessionManager == nil {
		http.Error(w, "auth disabled", http.StatusNotFound)
		return
	}
	_ = common.SessionManager.Destroy(r.Context())
	common.RespondJSON(w, map[string]any{"success": true})
}

// SessionHandler is the public session probe used by the UI.
func SessionHandler(w http.ResponseWriter, r *http.Request) {
	if common.SessionManager == nil {
		common.RespondJSON(w, map[string]any{"authenticated": true, "auth_disabled": true})
		return
	}
	u, ok := common.SessionManager.Get(r.Context(), "user").(middleware.User)
	exp := common.SessionManager.GetInt64(r.Context(), "exp")
	if !ok || time.Now().Unix() > exp {
		common.RespondJSON(w, map[string]any{"authenticated": false})
		return
	}
	common.RespondJSON(w, map[string]any{"authenticated": true, "user": u})
}
