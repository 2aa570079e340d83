// Command smoke exercises a running API end to end: it signs in as a
// service admin, creates a throwaway organization with an admin, deletes
// the organization and checks that its admin is locked out until restore.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type client struct {
	base  string
	http  *http.Client
	token string
}

func (c *client) call(ctx context.Context, method, path string, body, out any) (int, error) {
	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			return 0, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, &payload)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

func (c *client) expect(ctx context.Context, want int, method, path string, body, out any) {
	code, err := c.call(ctx, method, path, body, out)
	if err != nil {
		log.Fatalf("%s %s: %v", method, path, err)
	}
	if code != want {
		log.Fatalf("%s %s: expected %d, got %d", method, path, want, code)
	}
}

func (c *client) login(ctx context.Context, email, password string) *client {
	var tok struct {
		Token string `json:"token"`
	}
	c.expect(ctx, http.StatusOK, http.MethodPost, "/v1/auth/token", map[string]string{"email": email, "password": password}, &tok)
	return &client{base: c.base, http: c.http, token: tok.Token}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	base := getenv("BIZADMIN_SMOKE_URL", "http://localhost:8080")
	grpcAddr := getenv("BIZADMIN_SMOKE_GRPC_ADDR", "localhost:9090")
	email := os.Getenv("BIZADMIN_BOOTSTRAP_EMAIL")
	password := os.Getenv("BIZADMIN_BOOTSTRAP_PASSWORD")
	if email == "" || password == "" {
		log.Fatal("set BIZADMIN_BOOTSTRAP_EMAIL and BIZADMIN_BOOTSTRAP_PASSWORD")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, err := grpc.NewClient(grpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("dial grpc at %s: %v", grpcAddr, err)
	}
	defer conn.Close()
	health, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		log.Fatalf("grpc health: %v", err)
	}
	if health.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		log.Fatalf("grpc health: %v", health.GetStatus())
	}

	anon := &client{base: base, http: &http.Client{Timeout: 5 * time.Second}}
	admin := anon.login(ctx, email, password)

	var org struct {
		ID string `json:"id"`
	}
	name := fmt.Sprintf("smoke-%d", time.Now().UnixNano())
	admin.expect(ctx, http.StatusCreated, http.MethodPost, "/v1/organizations", map[string]string{"name": name}, &org)

	ownerEmail := name + "@smoke.test"
	admin.expect(ctx, http.StatusCreated, http.MethodPost, "/v1/organizations/"+org.ID+"/users", map[string]string{
		"email":    ownerEmail,
		"password": password,
		"role":     "ORGANIZATION_ADMIN",
	}, nil)
	owner := anon.login(ctx, ownerEmail, password)
	usersPath := "/v1/organizations/" + org.ID + "/users"
	owner.expect(ctx, http.StatusOK, http.MethodGet, usersPath, nil, nil)

	admin.expect(ctx, http.StatusOK, http.MethodDelete, "/v1/organizations/"+org.ID, nil, nil)
	owner.expect(ctx, http.StatusForbidden, http.MethodGet, usersPath, nil, nil)
	owner.expect(ctx, http.StatusOK, http.MethodGet, "/v1/me", nil, nil)

	admin.expect(ctx, http.StatusOK, http.MethodPost, "/v1/organizations/"+org.ID+"/restore", nil, nil)
	owner.expect(ctx, http.StatusOK, http.MethodGet, usersPath, nil, nil)

	// Leave the organization deleted so repeated runs do not pile up.
	admin.expect(ctx, http.StatusOK, http.MethodDelete, "/v1/organizations/"+org.ID, nil, nil)

	fmt.Printf("✅ console smoke test passed: organization=%s\n", org.ID)
}
