// Package config loads and validates mirror job configuration.
//
// A job is described by a JSON file:
//
//	{
//	  "name": "modis-l2",
//	  "query": {"provider": "LAADS", "short_name": "MOD09"},
//	  "hosts_to_paths": {"ladsweb.modaps.eosdis.nasa.gov": "laads"},
//	  "task_class": "default",
//	  "ignore": ["urs.earthdata.nasa.gov"],
//	  "fixes": [["http://", "https://"]]
//	}
//
// The name doubles as the namespace for cached search results and
// completion logs. Query parameters are opaque to this package; they
// are passed through to the catalog search untouched.
package config
