package access

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var (
	admin  = common.HexToAddress("0x00000000000000000000000000000000000000ad")
	keeper = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	nobody = common.HexToAddress("0x00000000000000000000000000000000000000f2")
)

func TestNewRegistry_AdminHoldsBothRoles(t *testing.T) {
	r := NewRegistry(admin)

	if !r.HasRole(admin, RoleAdmin) {
		t.Fatal("admin should hold RoleAdmin")
	}
	if !r.HasRole(admin, RoleBooker) {
		t.Fatal("admin should hold RoleBooker")
	}
	if r.HasRole(nobody, RoleAdmin) {
		t.Fatal("stranger should hold nothing")
	}
}

func TestRequire(t *testing.T) {
	r := NewRegistry(admin)

	if err := r.Require(admin, RoleAdmin); err != nil {
		t.Fatalf("Require(admin): %v", err)
	}
	if err := r.Require(nobody, RoleBooker); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}

func TestGrantRevoke(t *testing.T) {
	r := NewRegistry(admin)

	if err := r.Grant(admin, keeper, RoleBooker); err != nil {
		t.Fatalf("Grant: %v", err)
	}
	if !r.HasRole(keeper, RoleBooker) {
		t.Fatal("grant did not take effect")
	}

	if err := r.Revoke(admin, keeper, RoleBooker); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if r.HasRole(keeper, RoleBooker) {
		t.Fatal("revoke did not take effect")
	}
}

func TestGrant_RequiresAdmin(t *testing.T) {
	r := NewRegistry(admin)

	if err := r.Grant(nobody, keeper, RoleBooker); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("Grant by stranger: err = %v, want ErrUnauthorized", err)
	}
	if err := r.Revoke(nobody, admin, RoleAdmin); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("Revoke by stranger: err = %v, want ErrUnauthorized", err)
	}
	if !r.HasRole(admin, RoleAdmin) {
		t.Fatal("failed revoke must not strip the admin")
	}
}

// A booker who is not admin can do booker things but not admin things.
func TestRoleSeparation(t *testing.T) {
	r := NewRegistry(admin)
	if err := r.Grant(admin, keeper, RoleBooker); err != nil {
		t.Fatal(err)
	}

	if err := r.Require(keeper, RoleBooker); err != nil {
		t.Fatalf("booker check: %v", err)
	}
	if err := r.Require(keeper, RoleAdmin); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("booker as admin: err = %v, want ErrUnauthorized", err)
	}
}
