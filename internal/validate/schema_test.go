package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistrationValidator(t *testing.T) {
	v, err := NewRegistrationValidator()
	require.NoError(t, err)

	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "ip form", body: `{"name":"Room A","ip":"10.0.0.5","id":"rooma"}`},
		{name: "address form", body: `{"name":"Room A","address":"10.0.0.5:42096"}`},
		{name: "missing name", body: `{"ip":"10.0.0.5"}`, wantErr: true},
		{name: "blank name", body: `{"name":"   ","ip":"10.0.0.5"}`, wantErr: true},
		{name: "missing address", body: `{"name":"Room A"}`, wantErr: true},
		{name: "empty address", body: `{"name":"Room A","ip":""}`, wantErr: true},
		{name: "id with colon", body: `{"name":"Room A","ip":"10.0.0.5","id":"open:a"}`, wantErr: true},
		{name: "not json", body: `name=Room A`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate([]byte(tt.body))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPayload)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCommandValidator(t *testing.T) {
	v, err := NewCommandValidator()
	require.NoError(t, err)

	assert.NoError(t, v.Validate([]byte(`{"verb":"open","payload":"https://example.com"}`)))
	assert.NoError(t, v.Validate([]byte(`{"verb":"create","origin_channel":"C1"}`)))
	assert.ErrorIs(t, v.Validate([]byte(`{"verb":"open"}`)), ErrInvalidPayload)
	assert.ErrorIs(t, v.Validate([]byte(`{"verb":"reboot"}`)), ErrInvalidPayload)
}
