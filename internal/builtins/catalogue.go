package builtins

// catalogue returns the full name -> Func table for every builtin this host
// recognises. Names match the OPA builtin catalogue exactly; implementations
// either wrap a real Go function (see the other files in this package) or
// fall back to stub(name) for the operations named in stubs.go's design note.
func catalogue() map[string]Func {
	return map[string]Func{
		// --- encoding --------------------------------------------------
		"base64url.encode_no_pad": Wrap1(base64urlEncodeNoPad),
		"hex.encode":              Wrap1(hexEncode),
		"hex.decode":              Wrap1(hexDecode),
		"urlquery.encode":         Wrap1(urlqueryEncode),
		"urlquery.decode":         Wrap1(urlqueryDecode),
		"urlquery.encode_object":  Wrap1(urlqueryEncodeObject),
		"urlquery.decode_object":  Wrap1(urlqueryDecodeObject),
		"sprintf":                 Wrap2(sprintf),

		// --- hashing -----------------------------------------------------
		"crypto.md5":           Wrap1(cryptoMD5),
		"crypto.sha1":          Wrap1(cryptoSHA1),
		"crypto.sha256":        Wrap1(cryptoSHA256),
		"crypto.hmac.md5":      Wrap2(cryptoHMACMD5),
		"crypto.hmac.sha1":     Wrap2(cryptoHMACSHA1),
		"crypto.hmac.sha256":   Wrap2(cryptoHMACSHA256),
		"crypto.hmac.sha512":   Wrap2(cryptoHMACSHA512),
		"crypto.x509.parse_certificates":            stub("crypto.x509.parse_certificates"),
		"crypto.x509.parse_certificate_request":      stub("crypto.x509.parse_certificate_request"),
		"crypto.x509.parse_and_verify_certificates": stub("crypto.x509.parse_and_verify_certificates"),

		// --- JWT -----------------------------------------------------------
		"io.jwt.decode":           Wrap1(jwtDecode),
		"io.jwt.verify_hs256":     Wrap2(jwtVerifyHS256),
		"io.jwt.verify_hs384":     Wrap2(jwtVerifyHS384),
		"io.jwt.verify_hs512":     Wrap2(jwtVerifyHS512),
		"io.jwt.decode_verify":    Wrap2(jwtDecodeVerify),
		"io.jwt.encode_sign_raw":  Wrap3(jwtEncodeSignRaw),
		"io.jwt.verify_rs256":     stub("io.jwt.verify_rs256"),
		"io.jwt.verify_rs384":     stub("io.jwt.verify_rs384"),
		"io.jwt.verify_rs512":     stub("io.jwt.verify_rs512"),
		"io.jwt.verify_es256":     stub("io.jwt.verify_es256"),
		"io.jwt.verify_es384":     stub("io.jwt.verify_es384"),

		// --- GraphQL -------------------------------------------------------
		"graphql.is_valid":        Wrap2(graphqlIsValid),
		"graphql.parse":           Wrap2(graphqlParse),
		"graphql.parse_query":     Wrap1(graphqlParseQuery),
		"graphql.parse_schema":    Wrap1(graphqlParseSchema),
		"graphql.parse_and_verify": stub("graphql.parse_and_verify"),

		// --- glob / regex ----------------------------------------------
		"glob.quote_meta":       Wrap1(globQuoteMeta),
		"regex.find_n":          Wrap3(regexFindN),
		"regex.split":           Wrap2(regexSplit),
		"regex.match":           Wrap2(regexMatch),
		"regex.replace":         Wrap3(regexReplace),
		"regex.is_valid":        Wrap1(regexIsValid),
		"regex.globs_match":     Wrap2(regexGlobsMatch),
		"regex.template_match":  Wrap4(regexTemplateMatch),

		// --- JSON / object / yaml ---------------------------------------
		"json.patch":        Wrap2(jsonPatch),
		"object.union_n":    Wrap1(objectUnionN),
		"yaml.is_valid":     Wrap1(yamlIsValid),
		"yaml.marshal":      Wrap1(yamlMarshal),
		"yaml.unmarshal":    Wrap1(yamlUnmarshal),

		// --- numeric / time / units / semver -----------------------------
		"semver.compare":            Wrap2(semverCompare),
		"semver.is_valid":           Wrap1(semverIsValid),
		"units.parse":               Wrap1(unitsParse),
		"units.parse_bytes":         Wrap1(unitsParseBytes),
		"time.now_ns":               WrapCtx0(timeNowNs),
		"time.parse_rfc3339_ns":     Wrap1(timeParseRFC3339Ns),
		"time.parse_duration_ns":    Wrap1(timeParseDurationNs),
		"time.parse_ns":             Wrap2(timeParseNs),
		"time.weekday":              Wrap1(timeWeekday),
		"time.clock":                Wrap1(timeClock),
		"time.date":                 Wrap1(timeDate),
		"time.add_date":             Wrap4(timeAddDate),
		"time.diff":                 Wrap2(timeDiff),

		// --- rand / uuid -------------------------------------------------
		"rand.intn":      WrapCtx2(randIntn),
		"uuid.rfc4122":   WrapCtx1(uuidRFC4122),

		// --- http ----------------------------------------------------------
		"http.send": WrapCtx1(httpSend),

		// --- opa.* / trace ---------------------------------------------
		"opa.runtime": WrapCtx0(opaRuntime),
		"trace":       Wrap1(trace),


		// --- misc stubs: need the Rego compiler/AST or network access this
		// host deliberately does not carry (see stubs.go) -----------------
		"indexof_n":                 stub("indexof_n"),
		"graph.reachable_paths":     stub("graph.reachable_paths"),
		"rego.parse_module":         stub("rego.parse_module"),
		"net.cidr_contains_matches": stub("net.cidr_contains_matches"),
		"net.cidr_expand":           stub("net.cidr_expand"),
		"net.cidr_merge":            stub("net.cidr_merge"),
		"net.lookup_ip_addr":        stub("net.lookup_ip_addr"),
	}
}
