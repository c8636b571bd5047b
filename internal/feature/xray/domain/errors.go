// Package domain defines domain-level errors for the xray feature.
package domain

import "errors"

// Domain errors for image analysis.
// Handlers match them with errors.Is and translate them into client errors.
var (
	// ErrDecode indicates that the uploaded bytes are not a readable PNG or JPEG image.
	ErrDecode = errors.New("image could not be decoded")

	// ErrImageTooLarge indicates that the upload exceeds the configured size limit.
	ErrImageTooLarge = errors.New("image exceeds maximum size")

	// ErrUnsupportedFileType indicates that the file extension is not in the allowed set.
	ErrUnsupportedFileType = errors.New("file type not allowed")

	// ErrUnsupportedArchitecture indicates that the classifier has no spatial layer to explain.
	ErrUnsupportedArchitecture = errors.New("classifier architecture does not support saliency")

	// ErrInvalidLabelIndex indicates that a saliency request named a label outside the label set.
	ErrInvalidLabelIndex = errors.New("label index out of range")

	// ErrNotRadiograph indicates that image validation rejected the upload as not being an X-ray.
	ErrNotRadiograph = errors.New("image does not look like a radiograph")
)
