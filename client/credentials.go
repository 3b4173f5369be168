package client

// CredentialSupplier is a zero-argument function returning secret bytes
// (a password or username) at the moment they're first needed, so the
// plaintext value need not be written into a Config up front. A Credential
// keeps the bytes it returns once Bytes has been called (see Bytes).
type CredentialSupplier func() []byte

// Credential is either absent, a static byte string, or a deferred
// supplier. Whichever it is, the resolved bytes are memoized the first
// time Bytes is called and are never exposed through String/GoString, so
// an accidental %v/%+v on a Config never leaks a password.
type Credential struct {
	supplier CredentialSupplier
	resolved []byte
	have     bool
}

const redacted = "<redacted>"

// StaticCredential wraps a fixed byte string as a Credential.
func StaticCredential(b []byte) Credential {
	return Credential{supplier: func() []byte { return b }}
}

// StaticCredentialString is a convenience wrapper over StaticCredential
// for string literals.
func StaticCredentialString(s string) Credential {
	return StaticCredential([]byte(s))
}

// SuppliedCredential wraps a deferred supplier as a Credential.
func SuppliedCredential(supplier CredentialSupplier) Credential {
	return Credential{supplier: supplier}
}

// IsZero reports whether no credential was configured at all.
func (c Credential) IsZero() bool {
	return c.supplier == nil
}

// Bytes resolves and memoizes the credential's value. Calling it more
// than once returns the same bytes without invoking the supplier again.
func (c *Credential) Bytes() []byte {
	if c.supplier == nil {
		return nil
	}
	if !c.have {
		c.resolved = c.supplier()
		c.have = true
	}
	return c.resolved
}

// String and GoString deliberately do not reveal Bytes(), so logging or
// dumping a Config/Credential value never leaks secret material.
func (c Credential) String() string   { return redacted }
func (c Credential) GoString() string { return redacted }
