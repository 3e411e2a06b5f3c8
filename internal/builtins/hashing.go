package builtins

import (
	"crypto/hmac"
	"crypto/md5"  //nolint:gosec // required by the crypto.md5/crypto.hmac.md5 builtin contract
	"crypto/sha1" //nolint:gosec // required by the crypto.sha1/crypto.hmac.sha1 builtin contract
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"
)

func cryptoMD5(x string) (string, error) {
	h := md5.Sum([]byte(x))
	return hex.EncodeToString(h[:]), nil
}

func cryptoSHA1(x string) (string, error) {
	h := sha1.Sum([]byte(x))
	return hex.EncodeToString(h[:]), nil
}

func cryptoSHA256(x string) (string, error) {
	h := sha256.Sum256([]byte(x))
	return hex.EncodeToString(h[:]), nil
}

func hmacWith(newHash func() hash.Hash, x, key string) (string, error) {
	mac := hmac.New(newHash, []byte(key))
	mac.Write([]byte(x))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

func cryptoHMACMD5(x, key string) (string, error) {
	return hmacWith(md5.New, x, key)
}

func cryptoHMACSHA1(x, key string) (string, error) {
	return hmacWith(sha1.New, x, key)
}

func cryptoHMACSHA256(x, key string) (string, error) {
	return hmacWith(sha256.New, x, key)
}

func cryptoHMACSHA512(x, key string) (string, error) {
	return hmacWith(sha512.New, x, key)
}
