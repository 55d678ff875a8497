package jasmin

// Group is a router group.
type Group struct {
	GID     string `cbor:"gid" json:"gid"`
	Enabled bool   `cbor:"enabled" json:"enabled"`
}

// User is a router user. The uid equals the username, matching how the
// local store keys users.
type User struct {
	UID             string         `cbor:"uid" json:"uid"`
	Username        string         `cbor:"username" json:"username"`
	Password        string         `cbor:"password" json:"-"`
	GID             string         `cbor:"gid" json:"gid"`
	Enabled         bool           `cbor:"enabled" json:"enabled"`
	MTCredential    CredentialWire `cbor:"mt_credential" json:"mt_credential"`
	SMPPSCredential CredentialWire `cbor:"smpps_credential" json:"smpps_credential"`
}
