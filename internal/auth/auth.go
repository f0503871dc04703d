package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	apperrors "paper_shelf_go_backend/internal/errors"
	"paper_shelf_go_backend/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
)

const userContextKey = "user"

// TokenVerifier validates a bearer token and returns its claims.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (jwt.MapClaims, error)
}

// UserSyncer creates or refreshes the local user behind a verified token.
type UserSyncer interface {
	SyncUser(ctx context.Context, email, name string) (*models.User, error)
}

func SetupRoutes(r *gin.Engine, verifier TokenVerifier, users UserSyncer) {
	auth := r.Group("/auth")
	{
		auth.GET("/user", AuthMiddleware(verifier, users), getUser)
	}
}

func AuthMiddleware(verifier TokenVerifier, users UserSyncer) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abort(c, apperrors.New401Error())
			return
		}

		bearerToken := strings.Fields(authHeader)
		if len(bearerToken) != 2 || !strings.EqualFold(bearerToken[0], "Bearer") {
			abort(c, apperrors.New401Error())
			return
		}

		claims, err := verifier.Verify(c.Request.Context(), bearerToken[1])
		if err != nil {
			abort(c, fmt.Errorf("%w: %v", apperrors.ErrUnauthorized, err))
			return
		}

		email, _ := claims["email"].(string)
		name, _ := claims["name"].(string)
		if name == "" {
			name, _ = claims["nickname"].(string)
		}

		user, err := users.SyncUser(c.Request.Context(), email, name)
		if err != nil {
			abort(c, err)
			return
		}

		c.Set(userContextKey, user)
		c.Next()
	}
}

// CurrentUser returns the user stored by AuthMiddleware.
func CurrentUser(c *gin.Context) (*models.User, error) {
	value, exists := c.Get(userContextKey)
	if !exists {
		return nil, apperrors.ErrUnauthorized
	}
	user, ok := value.(*models.User)
	if !ok || user == nil {
		return nil, apperrors.ErrUnauthorized
	}
	return user, nil
}

func getUser(c *gin.Context) {
	user, err := CurrentUser(c)
	if err != nil {
		apperrors.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func abort(c *gin.Context, err error) {
	apperrors.HandleError(c, err)
	c.Abort()
}

// Auth0Verifier checks RS256 tokens against the tenant's JWKS. Keys are
// fetched on demand and cached for keyTTL. An unknown kid triggers at most
// one refetch per minRefresh.
type Auth0Verifier struct {
	issuer     string
	jwksURL    string
	httpClient *http.Client
	keyTTL     time.Duration
	minRefresh time.Duration

	mu        sync.Mutex
	certs     map[string]string
	fetchedAt time.Time
}

func NewAuth0Verifier(domain string, httpClient *http.Client) *Auth0Verifier {
	domain = strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(domain), "https://"), "/")
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Auth0Verifier{
		issuer:     fmt.Sprintf("https://%s/", domain),
		jwksURL:    fmt.Sprintf("https://%s/.well-known/jwks.json", domain),
		httpClient: httpClient,
		keyTTL:     time.Hour,
		minRefresh: time.Minute,
	}
}

func (v *Auth0Verifier) Verify(ctx context.Context, tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}

		cert, err := v.getPemCert(ctx, token)
		if err != nil {
			return nil, err
		}

		return jwt.ParseRSAPublicKeyFromPEM([]byte(cert))
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if !claims.VerifyIssuer(v.issuer, true) {
		return nil, errors.New("invalid issuer")
	}
	return claims, nil
}

func (v *Auth0Verifier) getPemCert(ctx context.Context, token *jwt.Token) (string, error) {
	kid, _ := token.Header["kid"].(string)

	v.mu.Lock()
	defer v.mu.Unlock()

	age := time.Since(v.fetchedAt)
	cert, ok := v.certs[kid]
	if ok && age < v.keyTTL {
		return cert, nil
	}
	if !ok && v.certs != nil && age < v.minRefresh {
		return "", errors.New("unable to find appropriate key")
	}
	if err := v.refreshKeys(ctx); err != nil {
		return "", err
	}
	cert, ok = v.certs[kid]
	if !ok {
		return "", errors.New("unable to find appropriate key")
	}
	return cert, nil
}

func (v *Auth0Verifier) refreshKeys(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.jwksURL, nil)
	if err != nil {
		return err
	}
	resp, err := v.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("jwks endpoint returned %d", resp.StatusCode)
	}

	var jwks = struct {
		Keys []struct {
			Kty string   `json:"kty"`
			Kid string   `json:"kid"`
			Use string   `json:"use"`
			N   string   `json:"n"`
			E   string   `json:"e"`
			X5c []string `json:"x5c"`
		} `json:"keys"`
	}{}
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return err
	}

	certs := make(map[string]string, len(jwks.Keys))
	for _, key := range jwks.Keys {
		if len(key.X5c) == 0 {
			continue
		}
		certs[key.Kid] = "-----BEGIN CERTIFICATE-----\n" + key.X5c[0] + "\n-----END CERTIFICATE-----"
	}
	v.certs = certs
	v.fetchedAt = time.Now()
	return nil
}
