// Package config loads termstack configuration documents.
//
// # Formats
//
// Documents are YAML by default. A path ending in .toml is decoded as TOML;
// both formats share the same field names.
//
// # Shape
//
//	version: v1
//	app:
//	  name: k8s
//	  history_size: 50
//	  cache_ttl: 30s
//	globals:
//	  namespace: default
//	start: pods
//	pages:
//	  pods:
//	    title: "Pods in {{ namespace }}"
//	    data:
//	      adapter: cli
//	      command: kubectl
//	      args: [get, pods, -o, json]
//	      items: "$.items[*]"
//	      timeout: 10s
//	    view:
//	      type: table
//	      columns:
//	        - path: "$.metadata.name"
//	          display: Name
//	    next:
//	      page: pod
//	      context:
//	        pod: "$.metadata.name"
//
// # Validation
//
// Load converts the document into immutable typed values and checks the page
// graph. Every problem is reported as an *Error naming the page and field, all
// of them joined into one error. Dangling page references are fatal. A
// conditional route list without a default is accepted and recorded in
// Config.Warnings; at runtime an unmatched selection is a no-op.
//
// # Durations
//
// Durations accept Go syntax ("500ms", "1m30s") or bare numbers, read as
// seconds.
package config
