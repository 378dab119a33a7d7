package attribute

import "testing"

func TestDefinitionReadableLevels(t *testing.T) {
	d := &Definition{Name: "x", Flags: DFlagUsrRead}
	if !d.readable(DFlagUsrRead) {
		t.Fatal("expected usr-read visible at usr level")
	}

	mgrOnly := &Definition{Name: "y", Flags: DFlagMgrRead}
	if mgrOnly.readable(DFlagOprRead) {
		t.Fatal("expected mgr-only attribute invisible at opr level")
	}
}

func TestDefinitionReadableMgrImpliesLowerLevels(t *testing.T) {
	d := &Definition{Name: "x", Flags: DFlagOprRead}
	if !d.readable(DFlagMgrRead) {
		t.Fatal("expected mgr-read to see an opr-readable attribute")
	}
}

func TestDefinitionWritableLevels(t *testing.T) {
	d := &Definition{Name: "x", Flags: DFlagMgrWrite}
	if d.writable(DFlagUsrWrite) {
		t.Fatal("expected usr level unable to write a mgr-only attribute")
	}
	if !d.writable(DFlagMgrWrite) {
		t.Fatal("expected mgr level able to write")
	}
}

func TestCheckWritableReadOnlyRejectsOutsideRecovery(t *testing.T) {
	d := &Definition{Name: "resources_assigned", Flags: DFlagReadOnly | DFlagSvrWrite}
	if err := d.CheckWritable(DFlagSvrWrite, false); err == nil {
		t.Fatal("expected error writing a read-only attribute outside recovery")
	}
	if err := d.CheckWritable(DFlagSvrWrite, true); err != nil {
		t.Fatalf("expected recovery to bypass read-only check, got: %v", err)
	}
}

func TestCheckWritablePermissionDenied(t *testing.T) {
	d := &Definition{Name: "x", Flags: DFlagMgrWrite}
	if err := d.CheckWritable(DFlagUsrWrite, false); err == nil {
		t.Fatal("expected permission denied for insufficient write level")
	}
}
