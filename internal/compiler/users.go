package compiler

import (
	"strings"

	"github.com/roach88/quark/internal/jasmin"
	"github.com/roach88/quark/internal/model"
)

// CompileGroup builds the engine group for g.
func CompileGroup(g model.Group) (jasmin.Group, error) {
	if err := checkGID(g.GID); err != nil {
		return jasmin.Group{}, err
	}
	return jasmin.Group{GID: g.GID, Enabled: g.Enabled}, nil
}

// CompileUser builds the engine user for u, including both credentials.
// isNew selects SetQuota over UpdateQuota.
func CompileUser(u model.User, isNew bool) (jasmin.User, error) {
	if strings.TrimSpace(u.Username) == "" {
		return jasmin.User{}, Invalid(CodeInvalidIdentifier, "username", nil, "username is empty")
	}
	if u.Password == "" {
		return jasmin.User{}, Invalid(CodeInvalidIdentifier, "password", nil, "password is empty")
	}
	if err := checkGID(u.GID); err != nil {
		return jasmin.User{}, withField(err, "group")
	}

	mt, err := CompileMTCredential(u.MTCredential, isNew)
	if err != nil {
		return jasmin.User{}, withField(err, "mt_credential")
	}
	smpps, err := CompileSMPPCredential(u.SMPPCredential, isNew)
	if err != nil {
		return jasmin.User{}, withField(err, "smpps_credential")
	}

	return jasmin.User{
		UID:             u.Username,
		Username:        u.Username,
		Password:        u.Password,
		GID:             u.GID,
		Enabled:         u.Enabled,
		MTCredential:    mt.Wire(),
		SMPPSCredential: smpps.Wire(),
	}, nil
}

func checkGID(gid string) error {
	if gid == "" {
		return Invalid(CodeInvalidIdentifier, "gid", nil, "group id is empty")
	}
	if len(gid) > model.MaxGIDLength {
		return Invalid(CodeInvalidIdentifier, "gid", nil, "group id %q is longer than %d characters", gid, model.MaxGIDLength)
	}
	if model.NormalizeID(gid) != gid {
		return Invalid(CodeInvalidIdentifier, "gid", nil, "group id %q must match [a-z0-9_]+", gid)
	}
	return nil
}
