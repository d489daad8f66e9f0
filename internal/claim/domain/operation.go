package domain

// Operation names a claim transition. Names are stable and used in metrics
// labels and error details.
type Operation string

const (
	OpSubmit           Operation = "submit"
	OpAuditApplication Operation = "audit_application"
	OpTemporarySave    Operation = "temporary_save"
	OpResumeAudit      Operation = "resume_audit"
	OpSystemAccept     Operation = "system_accept"
	OpSystemReject     Operation = "system_reject"
	OpSendToInsurer    Operation = "send_to_insurer"
	OpInsurerAccept    Operation = "insurer_accept"
	OpInsurerComplete  Operation = "insurer_complete"
	OpInsurerReject    Operation = "insurer_reject"
	OpInsurerAnnul     Operation = "insurer_annul"
	OpCancel           Operation = "cancel"

	// Enterprise only
	OpAdminAudit Operation = "admin_audit"
	OpReject     Operation = "reject"
	OpSettle     Operation = "settle"

	// Soft delete, not a status change
	OpDelete Operation = "delete"
)
