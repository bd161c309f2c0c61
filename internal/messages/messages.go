package messages

import "fmt"

// ─── Mapping validation builders ─────────────────────────────────────────────

func FileNotFound(path string) string {
	return fmt.Sprintf(FileNotReadable, path)
}

func PathIsDirectory(path string) string {
	return fmt.Sprintf(FileIsDirectory, path)
}

func UnknownRole(role string) string {
	return fmt.Sprintf(RoleUnknown, role)
}

func ReservedRole(role string) string {
	return fmt.Sprintf(RoleReserved, role)
}
