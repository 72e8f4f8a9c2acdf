package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedactMasksSensitiveKeys(t *testing.T) {
	payload := map[string]interface{}{
		"email":           "user@example.com",
		"password":        "hunter2",
		"confirmPassword": "hunter2",
		"token":           "abc",
		"secret":          "xyz",
		"key":             "k",
	}

	got := Redact(payload)

	assert.Equal(t, "user@example.com", got["email"])
	for _, k := range []string{"password", "confirmPassword", "token", "secret", "key"} {
		assert.Equal(t, RedactionMarker, got[k], k)
	}
}

func TestRedactIsShallow(t *testing.T) {
	nested := map[string]interface{}{"password": "deep"}
	payload := map[string]interface{}{"profile": nested}

	got := Redact(payload)

	assert.Equal(t, nested, got["profile"])
	assert.Equal(t, "deep", got["profile"].(map[string]interface{})["password"])
}

func TestRedactDoesNotMutateInput(t *testing.T) {
	payload := map[string]interface{}{"password": "hunter2"}

	_ = Redact(payload)

	assert.Equal(t, "hunter2", payload["password"])
}

func TestRedactNil(t *testing.T) {
	assert.Nil(t, Redact(nil))
}
