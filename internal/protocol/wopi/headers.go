package wopi

// Request headers.
const (
	HeaderOverride        = "X-WOPI-Override"
	HeaderLock            = "X-WOPI-Lock"
	HeaderOldLock         = "X-WOPI-OldLock"
	HeaderRequestedName   = "X-WOPI-RequestedName"
	HeaderRelativeTarget  = "X-WOPI-RelativeTarget"
	HeaderSuggestedTarget = "X-WOPI-SuggestedTarget"
	HeaderMaxExpectedSize = "X-WOPI-MaxExpectedSize"
	HeaderProof           = "X-WOPI-Proof"
	HeaderProofOld        = "X-WOPI-ProofOld"
	HeaderTimestamp       = "X-WOPI-TimeStamp"
)

// Response headers.
const (
	HeaderLockFailureReason = "X-WOPI-LockFailureReason"
	HeaderServerError       = "X-WOPI-ServerError"
	HeaderItemVersion       = "X-WOPI-ItemVersion"
	HeaderServerVersion     = "X-WOPI-ServerVersion"
	HeaderMachineName       = "X-WOPI-MachineName"
)

// AccessTokenParam is the query parameter carrying the access token.
const AccessTokenParam = "access_token"
