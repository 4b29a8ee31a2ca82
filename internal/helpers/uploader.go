package helpers

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

const DocumentsFolder = "eventflow/documents"

// CloudinaryUploader stores event documents in Cloudinary.
type CloudinaryUploader struct {
	cld    *cloudinary.Cloudinary
	folder string
}

func NewCloudinaryUploader(cld *cloudinary.Cloudinary, folder string) *CloudinaryUploader {
	if folder == "" {
		folder = DocumentsFolder
	}
	return &CloudinaryUploader{cld: cld, folder: folder}
}

func (u *CloudinaryUploader) Upload(ctx context.Context, fileName string, body io.Reader) (string, string, error) {
	if u.cld == nil {
		return "", "", errors.New("cloudinary is not configured")
	}
	res, err := u.cld.Upload.Upload(ctx, body, uploader.UploadParams{
		Folder:       u.folder,
		ResourceType: "auto",
		Tags:         []string{"eventflow"},
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to upload %s: %w", fileName, err)
	}
	if res.Error.Message != "" {
		return "", "", fmt.Errorf("failed to upload %s: %s", fileName, res.Error.Message)
	}
	return res.SecureURL, res.PublicID, nil
}
