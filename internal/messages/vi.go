package messages

// ─── Mapping validation ──────────────────────────────────────────────────────

const (
	PathAndRolesRequired = "Cần nhập cả đường dẫn tệp và ít nhất một vai trò (hoặc để trống cả hai)."
	FileNotReadable      = "Không tìm thấy tệp \"%s\" hoặc tệp không thể đọc được."
	FileIsDirectory      = "Đường dẫn \"%s\" là thư mục, không phải tệp."
	RoleUnknown          = "Vai trò \"%s\" không tồn tại."
	RoleReserved         = "Vai trò \"%s\" được hệ thống quản lý và không thể gán qua tệp."
)

// ─── Errors ──────────────────────────────────────────────────────────────────

const (
	ValidationFailed = "Cấu hình ánh xạ không hợp lệ."
	MappingsBody     = "Nội dung yêu cầu không hợp lệ: cần trường \"mappings\"."
)
