// Package types provides core types shared across the chatmode service.
// This package has ZERO dependencies on other chatmode packages to avoid
// circular imports. All other packages should import types from here.
package types
