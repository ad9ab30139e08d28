package meeting

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	meet "google.golang.org/api/meet/v2"
	"google.golang.org/api/option"

	"github.com/jwalitptl/scheduling-api/internal/model"
	"github.com/jwalitptl/scheduling-api/internal/repository"
	"github.com/jwalitptl/scheduling-api/pkg/logger"
	"github.com/jwalitptl/scheduling-api/pkg/security"
)

const (
	VendorGoogle = "google"

	meetScope = "https://www.googleapis.com/auth/meetings.space.created"
)

type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	// Endpoint overrides the Meet API base URL. Empty uses the default.
	Endpoint string
}

// GoogleMeetVendor creates open Google Meet spaces with the organizer's own
// OAuth token.
type GoogleMeetVendor struct {
	oauth       *oauth2.Config
	endpoint    string
	credentials repository.CredentialRepository
	sealer      security.Encryptor
	logger      *logger.Logger
}

func NewGoogleMeetVendor(cfg GoogleConfig, credentials repository.CredentialRepository, sealer security.Encryptor, log *logger.Logger) *GoogleMeetVendor {
	if log == nil {
		log = logger.Nop()
	}
	return &GoogleMeetVendor{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{meetScope},
		},
		endpoint:    cfg.Endpoint,
		credentials: credentials,
		sealer:      sealer,
		logger:      log,
	}
}

func (v *GoogleMeetVendor) CreateSpace(ctx context.Context, organizerID uuid.UUID) (*Space, error) {
	cred, err := v.credentials.Get(ctx, organizerID, VendorGoogle)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoCredential
		}
		return nil, fmt.Errorf("failed to load organizer credential: %w", err)
	}

	token, err := v.unseal(cred)
	if err != nil {
		return nil, err
	}

	source := v.oauth.TokenSource(ctx, token)
	opts := []option.ClientOption{option.WithTokenSource(source)}
	if v.endpoint != "" {
		opts = append(opts, option.WithEndpoint(v.endpoint))
	}

	svc, err := meet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create meet client: %w", err)
	}

	space, err := svc.Spaces.Create(&meet.Space{
		Config: &meet.SpaceConfig{
			AccessType:       "OPEN",
			EntryPointAccess: "ALL",
		},
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to create meet space: %w", err)
	}

	v.persistRefreshed(ctx, cred, source)

	return &Space{
		Name:        space.Name,
		MeetingCode: space.MeetingCode,
		MeetingURI:  space.MeetingUri,
	}, nil
}

func (v *GoogleMeetVendor) unseal(cred *model.OrganizerCredential) (*oauth2.Token, error) {
	access, err := v.sealer.Decrypt(cred.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to unseal access token: %w", err)
	}
	token := &oauth2.Token{AccessToken: string(access), TokenType: "Bearer", Expiry: cred.Expiry}
	if len(cred.RefreshToken) > 0 {
		refresh, err := v.sealer.Decrypt(cred.RefreshToken)
		if err != nil {
			return nil, fmt.Errorf("failed to unseal refresh token: %w", err)
		}
		token.RefreshToken = string(refresh)
	}
	return token, nil
}

// persistRefreshed stores a token the source refreshed during the call.
// Failing to store it only costs another refresh later.
func (v *GoogleMeetVendor) persistRefreshed(ctx context.Context, cred *model.OrganizerCredential, source oauth2.TokenSource) {
	organizer := cred.AccountID.String()
	current, err := source.Token()
	if err != nil {
		v.logger.Warn("failed to read refreshed organizer token", "organizer_id", organizer, "error", err.Error())
		return
	}
	previous, err := v.sealer.Decrypt(cred.AccessToken)
	if err != nil {
		v.logger.Warn("failed to unseal stored organizer token", "organizer_id", organizer, "error", err.Error())
		return
	}
	if bytes.Equal(previous, []byte(current.AccessToken)) {
		return
	}

	access, err := v.sealer.Encrypt([]byte(current.AccessToken))
	if err != nil {
		v.logger.Warn("failed to seal refreshed access token", "organizer_id", organizer, "error", err.Error())
		return
	}
	updated := *cred
	updated.AccessToken = access
	updated.Expiry = current.Expiry
	if current.RefreshToken != "" {
		refresh, err := v.sealer.Encrypt([]byte(current.RefreshToken))
		if err != nil {
			v.logger.Warn("failed to seal refreshed refresh token", "organizer_id", organizer, "error", err.Error())
			return
		}
		updated.RefreshToken = refresh
	}
	if err := v.credentials.Upsert(ctx, &updated); err != nil {
		v.logger.Warn("failed to store refreshed organizer token", "organizer_id", organizer, "error", err.Error())
	}
}
