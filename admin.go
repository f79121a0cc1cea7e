/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/julienschmidt/httprouter"
	"golang.org/x/crypto/bcrypt"
)

const adminTokenLifetime = 12 * time.Hour

// importRequestLimit caps the size of an uploaded CSV body.
const importRequestLimit = 4 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func newAdminToken(secret, username string) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(adminTokenLifetime)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func validateAdminToken(secret, tokenString string) error {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return err
	}
	if !token.Valid {
		return errors.New("invalid token")
	}
	return nil
}

// authRequired guards a handler behind a Bearer token issued by the
// login endpoint.
func authRequired(cfg *Config, next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		header := r.Header.Get("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			writeJSONError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if err := validateAdminToken(cfg.jwtSecret, parts[1]); err != nil {
			writeJSONError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		next(w, r, p)
	}
}

func adminLogin(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		if cfg.adminPassHash == "" {
			writeJSONError(w, http.StatusServiceUnavailable, "admin login is not configured")
			return
		}

		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "malformed request body")
			return
		}

		// One generic message for both unknown user and bad
		// password.
		if req.Username != cfg.adminUser ||
			bcrypt.CompareHashAndPassword([]byte(cfg.adminPassHash), []byte(req.Password)) != nil {
			writeJSONError(w, http.StatusUnauthorized, "incorrect username or password")
			return
		}

		token, err := newAdminToken(cfg.jwtSecret, req.Username)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, "could not issue token")
			return
		}

		logf(cfg, "ADMIN: %q logged in from %s", req.Username, realIP(r))

		writeJSON(w, http.StatusOK, map[string]string{"token": token})
	}
}

func listQuestions(cfg *Config, store QuestionStore) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var filter Category
		if raw := r.URL.Query().Get("category"); raw != "" {
			parsed, err := ParseCategory(raw)
			if err != nil {
				writeJSONError(w, http.StatusBadRequest, err.Error())
				return
			}
			filter = parsed
		}

		questions, err := store.FetchAll(r.Context(), filter)
		if err != nil {
			writeJSONError(w, http.StatusBadGateway, "store error: "+err.Error())
			return
		}
		if questions == nil {
			questions = []Question{}
		}

		writeJSON(w, http.StatusOK, map[string]any{"questions": questions})
	}
}

func createQuestion(cfg *Config, store QuestionStore) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var data QuestionData
		if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
			writeJSONError(w, http.StatusBadRequest, "malformed request body")
			return
		}
		if err := data.Validate(); err != nil {
			writeJSONError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}

		id, err := store.Create(r.Context(), data)
		if err != nil {
			writeJSONError(w, http.StatusBadGateway, "store error: "+err.Error())
			return
		}

		logf(cfg, "ADMIN: Created question %s (%s)", id, data.Category)

		writeJSON(w, http.StatusCreated, map[string]string{"id": id})
	}
}

func updateQuestion(cfg *Config, store QuestionStore) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		id := p.ByName("id")

		var patch QuestionPatch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			writeJSONError(w, http.StatusBadRequest, "malformed request body")
			return
		}
		if patch.Category != nil && !patch.Category.Valid() {
			writeJSONError(w, http.StatusUnprocessableEntity, fmt.Sprintf("unknown category %q", string(*patch.Category)))
			return
		}
		if patch.Choices != nil && (len(patch.Choices) < 3 || len(patch.Choices) > 4) {
			writeJSONError(w, http.StatusUnprocessableEntity, errBadShape.Error())
			return
		}

		err := store.Update(r.Context(), id, patch)
		if errors.Is(err, errQuestionNotFound) {
			writeJSONError(w, http.StatusNotFound, "question not found")
			return
		}
		if err != nil {
			writeJSONError(w, http.StatusBadGateway, "store error: "+err.Error())
			return
		}

		logf(cfg, "ADMIN: Updated question %s", id)

		w.WriteHeader(http.StatusNoContent)
	}
}

func toggleQuestion(cfg *Config, store QuestionStore) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		id := p.ByName("id")

		if err := store.ToggleActive(r.Context(), id); err != nil {
			writeJSONError(w, http.StatusBadGateway, "store error: "+err.Error())
			return
		}

		logf(cfg, "ADMIN: Toggled question %s", id)

		w.WriteHeader(http.StatusNoContent)
	}
}

func deleteQuestion(cfg *Config, store QuestionStore) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		id := p.ByName("id")

		if err := store.Delete(r.Context(), id); err != nil {
			writeJSONError(w, http.StatusBadGateway, "store error: "+err.Error())
			return
		}

		logf(cfg, "ADMIN: Deleted question %s", id)

		w.WriteHeader(http.StatusNoContent)
	}
}

func importQuestions(cfg *Config, store QuestionStore) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		body, err := io.ReadAll(io.LimitReader(r.Body, importRequestLimit))
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "could not read request body")
			return
		}

		parsed := parseImport(string(body))
		report := bulkCreate(r.Context(), store, parsed.OK)

		logf(cfg, "ADMIN: Imported %d questions (%d failed, %d rejected lines)",
			report.Created, report.Failed, len(parsed.Errors))

		lineErrors := parsed.Errors
		if lineErrors == nil {
			lineErrors = []ImportError{}
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"created":    report.Created,
			"failed":     report.Failed,
			"errors":     report.Errors,
			"lineErrors": lineErrors,
		})
	}
}

func exportQuestions(cfg *Config, store QuestionStore) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		questions, err := store.FetchAll(r.Context(), "")
		if err != nil {
			writeJSONError(w, http.StatusBadGateway, "store error: "+err.Error())
			return
		}

		csv := exportCSV(questions)

		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="questions-export.csv"`)
		_, _ = w.Write([]byte(csv))
	}
}

// registerAdmin wires the admin API and its embedded client. When no
// signing secret is configured, a random one is generated, which
// simply means admin sessions do not survive a restart.
func registerAdmin(cfg *Config, store QuestionStore, mux *httprouter.Router) {
	if cfg.jwtSecret == "" {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		cfg.jwtSecret = hex.EncodeToString(buf)
	}

	mux.GET(cfg.prefix+"/admin", serveAdminPage(cfg))

	mux.POST(cfg.prefix+"/api/admin/login", adminLogin(cfg))

	mux.GET(cfg.prefix+"/api/admin/questions", authRequired(cfg, listQuestions(cfg, store)))
	mux.POST(cfg.prefix+"/api/admin/questions", authRequired(cfg, createQuestion(cfg, store)))
	mux.PUT(cfg.prefix+"/api/admin/questions/:id", authRequired(cfg, updateQuestion(cfg, store)))
	mux.POST(cfg.prefix+"/api/admin/questions/:id/toggle", authRequired(cfg, toggleQuestion(cfg, store)))
	mux.DELETE(cfg.prefix+"/api/admin/questions/:id", authRequired(cfg, deleteQuestion(cfg, store)))

	mux.POST(cfg.prefix+"/api/admin/import", authRequired(cfg, importQuestions(cfg, store)))
	mux.GET(cfg.prefix+"/api/admin/export", authRequired(cfg, exportQuestions(cfg, store)))
}
