package mocks

//go:generate go run go.uber.org/mock/mockgen -destination=mock_source.go -package=mocks vidsift/internal/frames Source
