// Package oss uploads finished videos to Alibaba Cloud object storage.
package oss
