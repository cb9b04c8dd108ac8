package properties

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/google/uuid"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	handlersupport "staybook/internal/app/handlers/support"
	"staybook/internal/app/outbox"
	"staybook/internal/app/uow"
	domainproperty "staybook/internal/domain/property"
	"staybook/internal/domain/shared/clock"
)

const uploadPropertyPhotoKey = "host.properties.photos.upload"

var (
	ErrUploaderUnavailable = errors.New("properties: photo uploader unavailable")
	ErrPhotoRequired       = errors.New("properties: photo body is required")
)

// PhotoUploader stores binary content and returns its public URL.
type PhotoUploader interface {
	Upload(ctx context.Context, key string, reader io.Reader, contentType string) (string, error)
}

type UploadPropertyPhotoCommand struct {
	PropertyID  string `validate:"required"`
	OwnerID     string `validate:"required"`
	FileName    string
	ContentType string `validate:"required"`
	Reader      io.Reader
}

func (c UploadPropertyPhotoCommand) Key() string { return uploadPropertyPhotoKey }

func (c UploadPropertyPhotoCommand) LockPropertyID() string { return c.PropertyID }

type UploadPropertyPhotoHandler struct {
	UoWFactory uow.UoWFactory
	Uploader   PhotoUploader
	Events     outbox.Publisher
	Clock      clock.Clock
	Logger     *slog.Logger
}

func (h *UploadPropertyPhotoHandler) Handle(ctx context.Context, cmd UploadPropertyPhotoCommand) (dto.PhotoUploadResult, error) {
	if h.Uploader == nil {
		return dto.PhotoUploadResult{}, ErrUploaderUnavailable
	}
	if cmd.Reader == nil {
		return dto.PhotoUploadResult{}, ErrPhotoRequired
	}

	var (
		prop      *domainproperty.Property
		objectKey string
		publicURL string
	)
	err := handlersupport.InUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		var err error
		prop, err = loadOwnedProperty(ctx, unit, cmd.PropertyID, cmd.OwnerID)
		if err != nil {
			return err
		}
		objectKey = photoObjectKey(prop.ID, cmd.FileName)
		publicURL, err = h.Uploader.Upload(ctx, objectKey, cmd.Reader, cmd.ContentType)
		if err != nil {
			return fmt.Errorf("upload photo: %w", err)
		}
		if err := prop.AddPhoto(publicURL, clock.OrSystem(h.Clock).Now()); err != nil {
			return err
		}
		if err := unit.Properties().Save(ctx, prop); err != nil {
			return err
		}
		return h.Events.Record(ctx, prop)
	})
	if err != nil {
		return dto.PhotoUploadResult{}, err
	}
	if h.Logger != nil {
		h.Logger.Info("property photo added", "property_id", prop.ID, "owner_id", prop.OwnerID, "object_key", objectKey)
	}
	return dto.PhotoUploadResult{PropertyID: string(prop.ID), URL: publicURL}, nil
}

func photoObjectKey(id domainproperty.ID, fileName string) string {
	ext := strings.ToLower(path.Ext(strings.TrimSpace(fileName)))
	if len(ext) > 8 {
		ext = ""
	}
	return path.Join("properties", string(id), uuid.NewString()+ext)
}

var _ commands.Handler[UploadPropertyPhotoCommand, dto.PhotoUploadResult] = (*UploadPropertyPhotoHandler)(nil)
