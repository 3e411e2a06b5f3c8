package builtins

import (
	"encoding/json"
	"fmt"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jws"
)

// jwtDecode splits a compact JWS into [header, payload, signature] without
// verifying it, matching OPA's io.jwt.decode contract.
func jwtDecode(token string) ([3]interface{}, error) {
	var out [3]interface{}

	msg, err := jws.Parse([]byte(token))
	if err != nil {
		return out, fmt.Errorf("io.jwt.decode: %w", err)
	}
	sigs := msg.Signatures()
	if len(sigs) == 0 {
		return out, fmt.Errorf("io.jwt.decode: no signatures present")
	}

	headerJSON, err := json.Marshal(sigs[0].ProtectedHeaders())
	if err != nil {
		return out, fmt.Errorf("io.jwt.decode: header: %w", err)
	}
	var header, payload interface{}
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return out, fmt.Errorf("io.jwt.decode: header: %w", err)
	}
	if err := json.Unmarshal(msg.Payload(), &payload); err != nil {
		return out, fmt.Errorf("io.jwt.decode: payload: %w", err)
	}

	out[0] = header
	out[1] = payload
	out[2] = sigs[0].Signature()
	return out, nil
}

func verifyHMAC(token, secret string, alg jwa.SignatureAlgorithm) (bool, error) {
	_, err := jws.Verify([]byte(token), jws.WithKey(alg, []byte(secret)))
	return err == nil, nil
}

func jwtVerifyHS256(token, secret string) (bool, error) { return verifyHMAC(token, secret, jwa.HS256()) }
func jwtVerifyHS384(token, secret string) (bool, error) { return verifyHMAC(token, secret, jwa.HS384()) }
func jwtVerifyHS512(token, secret string) (bool, error) { return verifyHMAC(token, secret, jwa.HS512()) }

// jwtDecodeVerify verifies token against the constraints object's "secret"
// field (HMAC only is supported without a certificate library) and, if
// valid, returns [true, header, payload]; otherwise [false, {}, {}].
func jwtDecodeVerify(token string, constraints map[string]interface{}) ([3]interface{}, error) {
	var out [3]interface{}
	out[1], out[2] = map[string]interface{}{}, map[string]interface{}{}

	secret, _ := constraints["secret"].(string)
	if secret == "" {
		out[0] = false
		return out, nil
	}

	decoded, err := jwtDecode(token)
	if err != nil {
		out[0] = false
		return out, nil
	}

	alg := jwa.HS256()
	if header, ok := decoded[0].(map[string]interface{}); ok {
		if a, ok := header["alg"].(string); ok {
			switch a {
			case "HS384":
				alg = jwa.HS384()
			case "HS512":
				alg = jwa.HS512()
			}
		}
	}

	valid, err := verifyHMAC(token, secret, alg)
	if err != nil || !valid {
		out[0] = false
		return out, nil
	}

	out[0], out[1], out[2] = true, decoded[0], decoded[1]
	return out, nil
}

// jwtEncodeSignRaw signs payloadJSON with the key described by keyJSON
// (a JWK-shaped JSON object), using HS384 or HS512 when headerJSON's "alg"
// field names one of them and HS256 for any other value.
func jwtEncodeSignRaw(headerJSON, payloadJSON, keyJSON string) (string, error) {
	var header struct {
		Alg string `json:"alg"`
	}
	if err := json.Unmarshal([]byte(headerJSON), &header); err != nil {
		return "", fmt.Errorf("io.jwt.encode_sign_raw: header: %w", err)
	}

	var key struct {
		K string `json:"k"`
	}
	if err := json.Unmarshal([]byte(keyJSON), &key); err != nil {
		return "", fmt.Errorf("io.jwt.encode_sign_raw: key: %w", err)
	}

	alg := jwa.HS256()
	switch header.Alg {
	case "HS384":
		alg = jwa.HS384()
	case "HS512":
		alg = jwa.HS512()
	}

	signed, err := jws.Sign([]byte(payloadJSON), jws.WithKey(alg, []byte(key.K)))
	if err != nil {
		return "", fmt.Errorf("io.jwt.encode_sign_raw: %w", err)
	}
	return string(signed), nil
}
