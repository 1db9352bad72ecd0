package main

import (
	"context"
	"errors"
	"strings"

	"github.com/PaulBabatuyi/convosync/internal/auth"
	"github.com/PaulBabatuyi/convosync/internal/data"
	"github.com/PaulBabatuyi/convosync/internal/normalize"
	v1 "github.com/PaulBabatuyi/convosync/proto/chat/v1"
	"github.com/op/go-logging"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var log = logging.MustGetLogger("api")

const (
	maxProfileBatch = 100
	maxSearchLimit  = 50
)

// Register handles user registration: hashes password, stores profile, returns JWT token
func (s *Server) Register(ctx context.Context, req *v1.RegisterRequest) (*v1.AuthResponse, error) {
	email := normalize.Email(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, status.Errorf(codes.InvalidArgument, "a valid email is required")
	}
	if req.Password == "" {
		return nil, status.Errorf(codes.InvalidArgument, "password is required")
	}
	fullName := s.sanitize(req.FullName)
	if fullName == "" {
		fullName, _, _ = strings.Cut(email, "@")
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to hash password: %v", err)
	}

	p, err := s.profiles.CreateProfile(ctx, email, fullName, hashed)
	if err != nil {
		if errors.Is(err, data.ErrDuplicate) {
			return nil, status.Errorf(codes.AlreadyExists, "email already registered")
		}
		log.Errorf("create profile failed: %v", err)
		return nil, status.Errorf(codes.Internal, "failed to create profile")
	}
	log.Infof("registered %s (%s)", p.ID.Hex(), p.Email)
	return s.issueToken(p)
}

// Login authenticates a user and returns a JWT token
func (s *Server) Login(ctx context.Context, req *v1.LoginRequest) (*v1.AuthResponse, error) {
	p, err := s.profiles.GetProfileByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			return nil, status.Errorf(codes.NotFound, "user not found")
		}
		return nil, storeError("load profile", err)
	}
	if err := auth.CheckPassword(p.Password, req.Password); err != nil {
		return nil, status.Errorf(codes.PermissionDenied, "invalid credentials")
	}
	return s.issueToken(p)
}

func (s *Server) issueToken(p *data.Profile) (*v1.AuthResponse, error) {
	token, expiresAt, err := s.auth.GenerateToken(p.ID.Hex(), p.Email)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to generate token: %v", err)
	}
	return &v1.AuthResponse{Token: token, UserID: p.ID.Hex(), ExpiresAt: expiresAt}, nil
}

// Me returns the caller's profile. A valid token for a profile that no longer
// exists is treated as signed out.
func (s *Server) Me(ctx context.Context, _ *v1.MeRequest) (*v1.Profile, error) {
	claims, err := requireClaims(ctx)
	if err != nil {
		return nil, err
	}
	p, err := s.profiles.GetProfileByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, data.ErrNotFound) || errors.Is(err, data.ErrInvalidID) {
			return nil, status.Errorf(codes.Unauthenticated, "profile no longer exists")
		}
		return nil, storeError("load profile", err)
	}
	return toProfile(p), nil
}

// GetProfiles resolves a batch of ids. Unknown ids are absent from the result.
func (s *Server) GetProfiles(ctx context.Context, req *v1.GetProfilesRequest) (*v1.ProfileList, error) {
	if len(req.IDs) > maxProfileBatch {
		return nil, status.Errorf(codes.InvalidArgument, "at most %d ids per request", maxProfileBatch)
	}
	ps, err := s.profiles.GetProfilesByIDs(ctx, req.IDs)
	if err != nil {
		return nil, storeError("load profiles", err)
	}
	return toProfiles(ps), nil
}

// SearchProfiles matches full name or email, never returning the caller.
func (s *Server) SearchProfiles(ctx context.Context, req *v1.SearchProfilesRequest) (*v1.ProfileList, error) {
	claims, err := requireClaims(ctx)
	if err != nil {
		return nil, err
	}
	ps, err := s.profiles.SearchProfiles(ctx, req.Query, claims.UserID, clampLimit(req.Limit, data.DefaultSearchLimit, maxSearchLimit))
	if err != nil {
		return nil, storeError("search profiles", err)
	}
	return toProfiles(ps), nil
}
