package dialect

// Built-in dialects. Each platform tag maps to a dialect with its own
// identifier folding and function classification. The ANSI dialect is the
// terminal fallback for every other dialect.

// Dialect name constants.
const (
	ANSI      = "ansi"
	Postgres  = "postgres"
	MySQL     = "mysql"
	Snowflake = "snowflake"
	BigQuery  = "bigquery"
	Redshift  = "redshift"
	MSSQL     = "mssql"
	Oracle    = "oracle"
	SQLite    = "sqlite"
)

// Common function sets shared across dialects.
var (
	ansiAggregates = []string{
		"sum", "count", "avg", "min", "max",
		"stddev", "stddev_pop", "stddev_samp",
		"variance", "var_pop", "var_samp",
		"array_agg", "string_agg", "bool_and", "bool_or",
	}
	ansiGenerators = []string{
		"now", "current_date", "current_time", "current_timestamp",
		"random", "uuid", "pi",
	}
	ansiWindows = []string{
		"row_number", "rank", "dense_rank", "percent_rank", "ntile",
		"lag", "lead", "first_value", "last_value", "nth_value",
		"cume_dist",
	}
)

func init() {
	Register(New(ANSI).
		Normalization(NormLowercase).
		Aggregates(ansiAggregates...).
		Generators(ansiGenerators...).
		Windows(ansiWindows...).
		Build())

	Register(New(Postgres).
		Normalization(NormLowercase).
		Fallbacks(ANSI).
		Aggregates(ansiAggregates...).
		Aggregates("json_agg", "jsonb_agg", "json_object_agg", "percentile_cont", "percentile_disc", "mode").
		Generators(ansiGenerators...).
		Generators("gen_random_uuid", "clock_timestamp", "statement_timestamp", "txid_current", "nextval").
		Windows(ansiWindows...).
		Build())

	Register(New(MySQL).
		Normalization(NormLowercase).
		Fallbacks(ANSI).
		Aggregates(ansiAggregates...).
		Aggregates("group_concat", "json_arrayagg", "json_objectagg", "bit_and", "bit_or", "bit_xor").
		Generators(ansiGenerators...).
		Generators("curdate", "curtime", "sysdate", "rand", "last_insert_id").
		Windows(ansiWindows...).
		Build())

	Register(New(Snowflake).
		Normalization(NormUppercase).
		Fallbacks(ANSI).
		Aggregates(ansiAggregates...).
		Aggregates("listagg", "object_agg", "approx_count_distinct", "median", "any_value").
		Generators(ansiGenerators...).
		Generators("current_account", "current_region", "seq1", "seq2", "seq4", "seq8", "uuid_string").
		Windows(ansiWindows...).
		Windows("conditional_change_event", "conditional_true_event", "ratio_to_report").
		Build())

	Register(New(BigQuery).
		Normalization(NormCaseSensitive).
		Fallbacks(ANSI).
		Aggregates(ansiAggregates...).
		Aggregates("array_concat_agg", "logical_and", "logical_or", "countif", "any_value", "approx_count_distinct").
		Generators(ansiGenerators...).
		Generators("generate_uuid", "session_user", "rand").
		Windows(ansiWindows...).
		Build())

	Register(New(Redshift).
		Normalization(NormLowercase).
		Fallbacks(Postgres, ANSI).
		Aggregates(ansiAggregates...).
		Aggregates("listagg", "median", "approximate count").
		Generators(ansiGenerators...).
		Generators("getdate", "sysdate").
		Windows(ansiWindows...).
		Build())

	Register(New(MSSQL).
		Normalization(NormLowercase).
		Fallbacks(ANSI).
		Aggregates(ansiAggregates...).
		Aggregates("string_agg", "count_big", "checksum_agg").
		Generators(ansiGenerators...).
		Generators("getdate", "getutcdate", "newid", "sysdatetime").
		Windows(ansiWindows...).
		Build())

	Register(New(Oracle).
		Normalization(NormUppercase).
		Fallbacks(ANSI).
		Aggregates(ansiAggregates...).
		Aggregates("listagg", "median", "wm_concat").
		Generators(ansiGenerators...).
		Generators("sysdate", "systimestamp", "sys_guid").
		Windows(ansiWindows...).
		Build())

	Register(New(SQLite).
		Normalization(NormLowercase).
		Fallbacks(ANSI).
		Aggregates(ansiAggregates...).
		Aggregates("group_concat", "total").
		Generators(ansiGenerators...).
		Windows(ansiWindows...).
		Build())
}
