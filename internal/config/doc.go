// Package config defines the settings used by apk-deploy and provides
// helpers to load, validate and save them in YAML format.
//
// Values can be overridden from APK_DEPLOY_* environment variables, and
// host paths may start with ~.
package config
