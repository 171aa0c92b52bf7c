/**
 * @description
 * Webhook signature verification for the supported payment providers. Each
 * provider signs differently:
 *
 *   Paystack     HMAC-SHA512 of the raw body, hex, in x-paystack-signature.
 *   Stripe       HMAC-SHA256 of "{timestamp}.{body}" carried as t=...,v1=...
 *                pairs in Stripe-Signature, with a replay tolerance window.
 *   Flutterwave  a pre-shared value in verif-hash, no body signature.
 *
 * All comparisons are constant-time.
 */
package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const stripeSignatureTolerance = 5 * time.Minute

// VerifyPaystackSignature checks the x-paystack-signature header against the
// raw request body.
func VerifyPaystackSignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.TrimSpace(signature)))
}

// VerifyStripeSignature checks a Stripe-Signature header against the raw
// request body. The header holds a timestamp and one or more v1 signatures;
// any valid v1 within the tolerance window passes.
func VerifyStripeSignature(secret string, body []byte, header string, now time.Time) error {
	if secret == "" {
		return fmt.Errorf("no signing secret configured")
	}

	var timestamp int64
	var candidates []string
	for _, pair := range strings.Split(header, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(parts) != 2 {
			continue
		}
		switch parts[0] {
		case "t":
			parsed, err := strconv.ParseInt(parts[1], 10, 64)
			if err != nil {
				return fmt.Errorf("malformed timestamp in signature header")
			}
			timestamp = parsed
		case "v1":
			candidates = append(candidates, parts[1])
		}
	}
	if timestamp == 0 || len(candidates) == 0 {
		return fmt.Errorf("signature header missing timestamp or v1 signature")
	}

	age := now.Sub(time.Unix(timestamp, 0))
	if age > stripeSignatureTolerance || age < -stripeSignatureTolerance {
		return fmt.Errorf("signature timestamp outside tolerance window")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, candidate := range candidates {
		if hmac.Equal([]byte(expected), []byte(candidate)) {
			return nil
		}
	}
	return fmt.Errorf("no matching v1 signature")
}

// VerifyFlutterwaveHash checks the verif-hash header against the configured
// pre-shared value.
func VerifyFlutterwaveHash(expected string, header string) bool {
	if expected == "" || header == "" {
		return false
	}
	return hmac.Equal([]byte(expected), []byte(strings.TrimSpace(header)))
}
