// Package config loads authgate configuration.
//
// Values are layered: the defaults from New, then an optional YAML file
// (authgate.yaml in the working directory, or the file named by --config),
// then command-line flags that were explicitly set. The result is
// normalized by applyDefaults and checked by Validate.
//
// # Configuration File Structure
//
//	hosts:
//	  main: example.com
//	  admin: admin.example.com
//	  mobile: m.example.com
//	  scheme: https
//	auth:
//	  url: https://api.example.com
//	  timeout: 15s
//	paths:
//	  login: /login
//	  public: /
//	  admin_home: /auth/dashboards
//	admin_role: super-admin
//	routes:
//	  - pattern: /login
//	    class: login
//	  - pattern: /auth/dashboards/**
//	    class: gated
//	router:
//	  mobile_max_width: 768
//	store:
//	  backend: file
//	  file:
//	    path: ~/.config/authgate/session.json
//	server:
//	  listen: :8080
//	  upstream: http://127.0.0.1:3000
//	log:
//	  level: info
//	  format: text
package config
