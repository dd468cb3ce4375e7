package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/franciscosanchezn/gin-device-auth/internal/codegen"
	"github.com/franciscosanchezn/gin-device-auth/internal/metrics"
	"github.com/franciscosanchezn/gin-device-auth/internal/models"
	"github.com/franciscosanchezn/gin-device-auth/internal/services"
)

// DeviceAuthorization is returned to a client that starts the device flow
type DeviceAuthorization struct {
	ClientID     string    `json:"clientId"`
	DeviceCode   string    `json:"deviceCode"`
	UserCode     string    `json:"userCode"`
	AuthEndpoint string    `json:"authEndpoint"`
	Message      string    `json:"message"`
	Expiry       time.Time `json:"expiry"`
	Interval     int       `json:"interval"`
}

// DeviceAuthorizer creates device sessions
type DeviceAuthorizer struct {
	apps      ApplicationDirectory
	allocator *codegen.Allocator
	publicURL string
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewDeviceAuthorizer(apps ApplicationDirectory, allocator *codegen.Allocator, publicURL string, m *metrics.Metrics, now func() time.Time) *DeviceAuthorizer {
	if now == nil {
		now = time.Now
	}
	return &DeviceAuthorizer{
		apps:      apps,
		allocator: allocator,
		publicURL: strings.TrimRight(publicURL, "/"),
		metrics:   m,
		now:       now,
	}
}

// Initiate registers a new device session for clientID. Codes are allocated
// in order user code, status, device code; a failure at any step aborts and
// leaves earlier keys to expire unreferenced.
func (d *DeviceAuthorizer) Initiate(ctx context.Context, clientID string) (*DeviceAuthorization, error) {
	if err := (FieldErrors{}).require(map[string]string{"clientId": clientID}).err(); err != nil {
		d.metrics.DeviceAuthorization("invalid_request")
		return nil, err
	}

	if _, err := activeApplication(ctx, d.apps, clientID); err != nil {
		d.metrics.DeviceAuthorization("invalid_client")
		return nil, err
	}

	userCode, err := d.allocator.Allocate(ctx, codegen.UserCodeLength, SessionTTL, clientID)
	if err != nil {
		d.metrics.DeviceAuthorization("allocation_failed")
		return nil, fmt.Errorf("could not create userCode: %w", err)
	}

	if err := d.allocator.Set(ctx, statusKey(userCode), StatusPending, SessionTTL); err != nil {
		d.metrics.DeviceAuthorization("allocation_failed")
		return nil, fmt.Errorf("could not create login status: %w", err)
	}

	deviceCode, err := d.allocator.Allocate(ctx, codegen.DeviceCodeLength, SessionTTL, userCode)
	if err != nil {
		d.metrics.DeviceAuthorization("allocation_failed")
		return nil, fmt.Errorf("could not create deviceCode: %w", err)
	}

	authEndpoint := fmt.Sprintf("%s/oauth2/v1/%s/%s/login", d.publicURL, clientID, userCode)

	log.WithField("client_id", clientID).Info("Device authorization created")
	d.metrics.DeviceAuthorization("ok")

	return &DeviceAuthorization{
		ClientID:     clientID,
		DeviceCode:   deviceCode,
		UserCode:     userCode,
		AuthEndpoint: authEndpoint,
		Message: fmt.Sprintf("Application verification successful. Please have the user login at %s. Poll token endpoint every %ds.",
			authEndpoint, PollInterval),
		Expiry:   d.now().Add(SessionTTL),
		Interval: PollInterval,
	}, nil
}

// activeApplication loads clientID and rejects unknown or inactive applications
func activeApplication(ctx context.Context, apps ApplicationDirectory, clientID string) (*models.Application, error) {
	app, err := apps.GetApplication(ctx, clientID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return nil, ErrApplicationInvalid
		}
		return nil, fmt.Errorf("failed to load application: %w", err)
	}
	if !app.Active {
		log.WithFields(logrus.Fields{"client_id": clientID}).Warn("Rejected inactive application")
		return nil, ErrApplicationInvalid
	}
	return app, nil
}
