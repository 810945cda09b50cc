package webhook

import (
	"crypto/md5"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// DuplicateWindow is how long a stored signature suppresses re-delivery of
// the same payload.
const DuplicateWindow = 5 * time.Minute

// signaturePrefixLen is how many hex characters of the digest take part in
// duplicate matching.
const signaturePrefixLen = 10

// Signature digests a webhook body together with the charge status it
// carried, so the same charge moving to a new status is never treated as a
// duplicate delivery.
func Signature(body []byte, chargeStatus string) string {
	sum := md5.Sum(append(append([]byte{}, body...), chargeStatus...))
	return hex.EncodeToString(sum[:])
}

// EncodeSignature renders a signature for storage, embedding the receipt
// time so the duplicate window can be enforced on the next delivery.
func EncodeSignature(signature string, receivedAt time.Time) string {
	return signature + "_" + strconv.FormatInt(receivedAt.UTC().Unix(), 10)
}

// IsDuplicate reports whether signature matches stored (a previously
// encoded signature) within the duplicate window ending at now. Matching
// is on the digest prefix only.
func IsDuplicate(signature, stored string, now time.Time) bool {
	if signature == "" || stored == "" {
		return false
	}
	idx := strings.LastIndex(stored, "_")
	if idx < 0 {
		return false
	}
	digest, rawTime := stored[:idx], stored[idx+1:]
	if len(signature) < signaturePrefixLen || len(digest) < signaturePrefixLen {
		return false
	}
	if signature[:signaturePrefixLen] != digest[:signaturePrefixLen] {
		return false
	}
	ts, err := strconv.ParseInt(rawTime, 10, 64)
	if err != nil {
		return false
	}
	age := now.Sub(time.Unix(ts, 0))
	return age >= 0 && age < DuplicateWindow
}
