package iothub

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// SASToken signs a shared access signature for deviceID on host, valid until expiry.
// key is the base64 device key.
func SASToken(host, deviceID, key string, expiry time.Time) (string, error) {
	k, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		return "", fmt.Errorf("decode device key: %w", err)
	}

	sr := url.QueryEscape(host + "/devices/" + deviceID)
	se := strconv.FormatInt(expiry.Unix(), 10)

	mac := hmac.New(sha256.New, k)
	mac.Write([]byte(sr + "\n" + se))
	sig := url.QueryEscape(base64.StdEncoding.EncodeToString(mac.Sum(nil)))

	return fmt.Sprintf("SharedAccessSignature sr=%s&sig=%s&se=%s", sr, sig, se), nil
}

// Username returns the MQTT username for a device, advertising modelID.
func Username(host, deviceID, modelID string) string {
	u := host + "/" + deviceID + "/?api-version=" + APIVersion
	if modelID != "" {
		u += "&model-id=" + url.QueryEscape(modelID)
	}
	return u
}
