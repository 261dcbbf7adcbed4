//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"cube-agent/src/auth"
	"cube-agent/src/cube"
	"cube-agent/src/query"
	"cube-agent/src/store"
)

func liveService(t *testing.T) (*query.Service, *store.ResultStore) {
	t.Helper()

	endpoint := os.Getenv("CUBE_ENDPOINT")
	if endpoint == "" {
		t.Skip("CUBE_ENDPOINT not set, skipping integration test")
	}
	secret := os.Getenv("CUBE_API_SECRET")
	if secret == "" {
		t.Skip("CUBE_API_SECRET not set, skipping integration test")
	}

	payload := map[string]any{}
	if raw := os.Getenv("CUBE_TOKEN_PAYLOAD"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			t.Fatalf("invalid CUBE_TOKEN_PAYLOAD: %v", err)
		}
	}

	tokens := auth.NewTokenManager(secret, payload)
	client := cube.NewClient(endpoint, tokens)
	results := store.NewResultStore(0)
	t.Cleanup(results.Stop)

	return query.NewService(client, results), results
}

func TestCubeIntegration_Describe(t *testing.T) {
	svc, _ := liveService(t)

	text, err := svc.Describe(context.Background())
	if err != nil {
		t.Fatalf("Describe failed: %v", err)
	}
	if text == "" {
		t.Error("expected a non-empty description")
	}
}

func TestCubeIntegration_ReadAndRetrieve(t *testing.T) {
	svc, results := liveService(t)

	rawQuery := os.Getenv("TEST_CUBE_QUERY")
	if rawQuery == "" {
		t.Skip("TEST_CUBE_QUERY not set, skipping integration test")
	}
	var q map[string]any
	if err := json.Unmarshal([]byte(rawQuery), &q); err != nil {
		t.Fatalf("invalid TEST_CUBE_QUERY: %v", err)
	}

	res, err := svc.Read(context.Background(), q)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if res.ID == "" {
		t.Fatal("expected a result identifier")
	}

	if _, err := results.Get(res.ID); err != nil {
		t.Errorf("Get(%s) failed: %v", res.ID, err)
	}
}
