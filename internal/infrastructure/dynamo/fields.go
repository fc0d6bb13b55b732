package dynamo

// DynamoDB attribute and index names shared by the bootstrap and the store.
const (
	fieldRegistrationID   = "registration_id"
	fieldTransactionID    = "transaction_id"
	fieldVerificationID   = "verification_id"
	fieldUPITransactionID = "upi_transaction_id"
	fieldTeamID           = "team_id"
	fieldLeaderKey        = "leader_key"
	fieldRoster           = "roster"
	fieldSyncedAt         = "synced_at"
	fieldStatus           = "status"
	fieldVerificationData = "verification_data"

	indexTeam   = "team_id-index"
	indexLeader = "leader_key-index"
	indexUPI    = "upi_transaction_id-index"

	// upiLockPrefix marks the item in the verifications table that reserves a
	// UPI transaction id for exactly one registration.
	upiLockPrefix = "UPI#"
)
