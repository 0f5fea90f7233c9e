package constants

// Redis keys follow app:{module}:{entity}:{unique_id}.
const (
	AppPrefix = "ats"

	JDModulePrefix       = "jd"
	AnalysisModulePrefix = "analysis"
	FileModulePrefix     = "file"

	EntityLock     = "lock"
	EntityVector   = "vector"
	EntityDedupMap = "hash_to_id"

	// KeyJDVector caches a JD embedding (STRING, JSON array).
	// Format: ats:jd:vector:{model}:{sha256(jd)}
	KeyJDVector = AppPrefix + ":" + JDModulePrefix + ":" + EntityVector + ":%s:%s"

	// KeyAnalysisLock guards one analysis against concurrent workers (STRING).
	// Format: ats:analysis:lock:{analysisID}
	KeyAnalysisLock = AppPrefix + ":" + AnalysisModulePrefix + ":" + EntityLock + ":%s"

	// KeySubmissionDedup maps a résumé+JD content hash to its analysis ID (STRING).
	// Format: ats:file:hash_to_id:{sha256}
	KeySubmissionDedup = AppPrefix + ":" + FileModulePrefix + ":" + EntityDedupMap + ":%s"
)
