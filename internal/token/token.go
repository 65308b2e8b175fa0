package token

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/duochat/duochat-server/internal/errors"
)

// Claims is the signed assertion a device presents to access its room,
// both over REST and when joining the relay.
type Claims struct {
	DeviceID string
	RoomID   string
}

// Issuer mints and verifies room claims. It is a pure function over the
// process-wide signing secret; the secret is loaded once at startup and
// never rotated at runtime.
type Issuer struct {
	secret []byte
}

func NewIssuer(secret string) *Issuer {
	return &Issuer{secret: []byte(secret)}
}

// Issue signs a claim for the device/room couple. Claims deliberately
// carry no expiry: unpairing deletes server-side state but does not
// revoke tokens already handed out.
func (i *Issuer) Issue(deviceID, roomID string) (string, error) {
	claims := jwt.MapClaims{
		"deviceId": deviceID,
		"roomId":   roomID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign claim: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and returns the embedded identities.
func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, apperrors.InvalidClaim()
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, apperrors.InvalidClaim()
	}

	deviceID, ok := mapClaims["deviceId"].(string)
	if !ok || deviceID == "" {
		return nil, apperrors.InvalidClaim()
	}

	roomID, ok := mapClaims["roomId"].(string)
	if !ok || roomID == "" {
		return nil, apperrors.InvalidClaim()
	}

	return &Claims{DeviceID: deviceID, RoomID: roomID}, nil
}
