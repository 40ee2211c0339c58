package licenses

import (
	"errors"

	"github.com/skip2/go-qrcode"
)

// GenerateQRCode renders a license key as a PNG so owners can hand keys out
// on printed or on-screen cards.
func GenerateQRCode(licenseKey string, size int) ([]byte, error) {
	if size == 0 {
		size = 256
	}
	if size < 128 || size > 2048 {
		return nil, errors.New("invalid size: must be between 128 and 2048")
	}

	qr, err := qrcode.New(licenseKey, qrcode.Medium)
	if err != nil {
		return nil, err
	}

	return qr.PNG(size)
}
