// Package sigv4 computes AWS Signature Version 4 request headers for the
// Cloudflare R2 S3-compatible API. Signing is a pure function of its inputs:
// it performs no I/O and reads no ambient state, so the same inputs at the
// same timestamp always produce the same authorization header.
package sigv4

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"
)

const (
	Algorithm = "AWS4-HMAC-SHA256"

	// R2 accepts any region but canonically uses "auto".
	Region  = "auto"
	Service = "s3"

	// EmptyPayloadHash is the SHA-256 hex digest of the empty byte sequence,
	// used as the payload hash for bodyless requests.
	EmptyPayloadHash = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

	longDateFormat  = "20060102T150405Z"
	shortDateFormat = "20060102"
)

// Credentials holds the long-term keys used to sign requests. SessionToken
// is optional; when empty no x-amz-security-token header is emitted.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// HmacSHA256 computes HMAC-SHA256 of data under key.
func HmacSHA256(key []byte, data string) []byte {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(data))
	return h.Sum(nil)
}

// PayloadHash returns the SHA-256 hex digest of body. A nil or empty body
// hashes to EmptyPayloadHash.
func PayloadHash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// sortedHeaderNames returns the header names ordered case-insensitively.
// Names are first sorted byte-wise so that keys equal under case folding
// keep a deterministic relative order.
func sortedHeaderNames(headers map[string]string) []string {
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)
	sort.SliceStable(names, func(i, j int) bool {
		return strings.ToLower(names[i]) < strings.ToLower(names[j])
	})
	return names
}

// SignedHeaders returns the lowercase header names joined by ";" in
// canonical order.
func SignedHeaders(headers map[string]string) string {
	names := sortedHeaderNames(headers)
	lower := make([]string, len(names))
	for i, name := range names {
		lower[i] = strings.ToLower(name)
	}
	return strings.Join(lower, ";")
}

// BuildCanonicalRequest assembles the canonical request string from the verb,
// URI path, pre-encoded query string, header set and payload hash. Header
// values are trimmed of leading and trailing whitespace; interior whitespace
// is preserved as-is.
func BuildCanonicalRequest(verb, uriPath, queryString string, headers map[string]string, payloadHash string) string {
	names := sortedHeaderNames(headers)

	var hdrBuilder strings.Builder
	for _, name := range names {
		hdrBuilder.WriteString(strings.ToLower(name))
		hdrBuilder.WriteString(":")
		hdrBuilder.WriteString(strings.TrimSpace(headers[name]))
		hdrBuilder.WriteString("\n")
	}

	var b strings.Builder
	b.WriteString(verb)
	b.WriteString("\n")
	b.WriteString(uriPath)
	b.WriteString("\n")
	b.WriteString(queryString)
	b.WriteString("\n")
	b.WriteString(hdrBuilder.String())
	b.WriteString("\n")
	b.WriteString(SignedHeaders(headers))
	b.WriteString("\n")
	b.WriteString(payloadHash)

	return b.String()
}

// Sign returns a copy of headers augmented with the x-amz-date,
// x-amz-content-sha256 and authorization headers required by the remote
// service, and with x-amz-security-token when a session token is present.
// All inserted headers participate in the signature. The input map is not
// modified.
//
// The query string must already be sorted and percent-encoded by the caller;
// the URI path is signed exactly as given.
func Sign(verb, uriPath, queryString string, headers map[string]string, body []byte, creds Credentials, now time.Time) map[string]string {
	longDate := now.UTC().Format(longDateFormat)
	shortDate := now.UTC().Format(shortDateFormat)
	scope := strings.Join([]string{shortDate, Region, Service, "aws4_request"}, "/")

	payloadHash := PayloadHash(body)

	signed := make(map[string]string, len(headers)+4)
	for name, value := range headers {
		signed[name] = value
	}
	if creds.SessionToken != "" {
		signed["x-amz-security-token"] = creds.SessionToken
	}
	signed["x-amz-date"] = longDate
	signed["x-amz-content-sha256"] = payloadHash

	canonicalReq := BuildCanonicalRequest(verb, uriPath, queryString, signed, payloadHash)
	crHash := sha256.Sum256([]byte(canonicalReq))
	crHashHex := hex.EncodeToString(crHash[:])

	var stsBuilder strings.Builder
	stsBuilder.WriteString(Algorithm)
	stsBuilder.WriteString("\n")
	stsBuilder.WriteString(longDate)
	stsBuilder.WriteString("\n")
	stsBuilder.WriteString(scope)
	stsBuilder.WriteString("\n")
	stsBuilder.WriteString(crHashHex)
	stringToSign := stsBuilder.String()

	kSecret := []byte("AWS4" + creds.SecretAccessKey)
	kDate := HmacSHA256(kSecret, shortDate)
	kRegion := HmacSHA256(kDate, Region)
	kService := HmacSHA256(kRegion, Service)
	kSigning := HmacSHA256(kService, "aws4_request")
	signature := hex.EncodeToString(HmacSHA256(kSigning, stringToSign))

	signed["authorization"] = Algorithm + " Credential=" + creds.AccessKeyID + "/" + scope +
		",SignedHeaders=" + SignedHeaders(signed) +
		",Signature=" + signature

	return signed
}
