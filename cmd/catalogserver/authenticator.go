// Copyright 2025 European Digital Reading Lab. All rights reserved.
// Use of this source code is governed by a BSD-style license
// specified in the Github project LICENSE file.

package main

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	log "github.com/sirupsen/logrus"

	"github.com/drem/event-catalog/pkg/conf"
	"github.com/drem/event-catalog/pkg/ops"
)

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type Claims struct {
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
	jwt.RegisteredClaims
}

// validateCredentials checks if the provided username and password match
// one of the configured accounts, and returns it
func validateCredentials(username, password string, config *conf.Config) (conf.Account, bool) {
	account, exists := config.JWT.Accounts[username]
	if !exists {
		return conf.Account{}, false
	}
	return account, subtle.ConstantTimeCompare([]byte(account.Password), []byte(password)) == 1
}

// issueToken signs a token carrying the username and roles of an account
func issueToken(username string, roles []string, config *conf.Config, now time.Time) (string, time.Time, error) {
	expirationTime := now.Add(config.JWT.Lifetime)
	claims := &Claims{
		Username: username,
		Roles:    roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expirationTime),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(config.JWT.SecretKey))
	return tokenString, expirationTime, err
}

// Login creates a login handler using the provided configuration
func Login(config *conf.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var creds Credentials
		err := json.NewDecoder(r.Body).Decode(&creds)
		if err != nil {
			http.Error(w, "Bad request", http.StatusBadRequest)
			return
		}

		// Check credentials using configured accounts
		account, ok := validateCredentials(creds.Username, creds.Password, config)
		if !ok {
			log.Warnf("Connection attempt failed for user: %s", creds.Username)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		log.Infof("User logged in: %s", creds.Username)

		// Create JWT token using the configured secret key
		tokenString, expirationTime, err := issueToken(creds.Username, account.Roles, config, time.Now())
		if err != nil {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		// Send back the token in a cookie, used by browser websockets
		http.SetCookie(w, &http.Cookie{
			Name:     "token",
			Value:    tokenString,
			Expires:  expirationTime,
			HttpOnly: true,
			Secure:   strings.HasPrefix(config.PublicBaseUrl, "https"),
			SameSite: http.SameSiteStrictMode,
		})

		// Also return the token and user information as JSON
		response := map[string]interface{}{
			"token":     tokenString,
			"expiresAt": expirationTime.UTC().Format(time.RFC3339),
			"user": map[string]interface{}{
				"name":  creds.Username,
				"roles": account.Roles,
			},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}
}

// AuthMiddleware creates JWT authentication middleware using the provided configuration.
// The caller identity is stored in the request context.
func AuthMiddleware(config *conf.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var tokenStr string

			// Try to get a token from the Authorization header first (Bearer token)
			authHeader := r.Header.Get("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") && len(authHeader) > 7 {
				tokenStr = authHeader[7:]
			} else {
				// Fallback to cookie if no Authorization header
				c, err := r.Cookie("token")
				if err != nil {
					writeAuthError(w, http.StatusUnauthorized, "No authentication token provided", "")
					return
				}
				tokenStr = c.Value
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
				return []byte(config.JWT.SecretKey), nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

			if err != nil {
				log.Debugf("JWT parse error: %v", err)

				// Handle JWT validation errors
				errorMessage := "Invalid or malformed token"
				var errorCode string
				if errors.Is(err, jwt.ErrTokenExpired) {
					errorMessage = "Token has expired"
					errorCode = "TOKEN_EXPIRED"
				} else if errors.Is(err, jwt.ErrSignatureInvalid) {
					errorMessage = "Invalid token signature"
				} else if errors.Is(err, jwt.ErrTokenNotValidYet) {
					errorMessage = "Token not valid yet"
				} else if errors.Is(err, jwt.ErrTokenMalformed) {
					errorMessage = "Token is malformed"
				}
				writeAuthError(w, http.StatusUnauthorized, errorMessage, errorCode)
				return
			}

			if !token.Valid {
				writeAuthError(w, http.StatusUnauthorized, "Token is not valid", "")
				return
			}

			// Add the caller to the request context for use in handlers
			caller := ops.Caller{Subject: claims.Username, Roles: claims.Roles}
			next.ServeHTTP(w, r.WithContext(ops.WithCaller(r.Context(), caller)))
		})
	}
}

func writeAuthError(w http.ResponseWriter, status int, message, code string) {
	response := map[string]string{"error": message}
	if code != "" {
		response["code"] = code
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}
