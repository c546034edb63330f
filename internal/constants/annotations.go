package constants

// AnnotationPrefix namespaces every balancer-owned annotation on team deployments.
const AnnotationPrefix = "wrongsecrets-ctf-party/"

// Instance record annotations stored on the workload and desktop deployments.
const (
	// AnnotationLastRequest holds the epoch milliseconds of the last activity touch.
	AnnotationLastRequest = AnnotationPrefix + "lastRequest"
	// AnnotationLastRequestReadable is the human readable form of AnnotationLastRequest.
	AnnotationLastRequestReadable = AnnotationPrefix + "lastRequestReadable"
	// AnnotationPasscode holds the bcrypt digest of the team passcode. Never the plaintext.
	AnnotationPasscode = AnnotationPrefix + "passcode"
	// AnnotationChallengesSolved and AnnotationChallenges are progress counters owned
	// by the progress watcher; the balancer only initialises them.
	AnnotationChallengesSolved = AnnotationPrefix + "challengesSolved"
	AnnotationChallenges       = AnnotationPrefix + "challenges"
)

// Cloud workload identity annotations patched onto the team's default ServiceAccount.
const (
	AnnotationAWSRoleARN        = "eks.amazonaws.com/role-arn"
	AnnotationGCPServiceAccount = "iam.gke.io/gcp-service-account"
)
