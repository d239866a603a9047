package mocks

//go:generate mockery --name RecordStore --srcpkg github.com/aevon-lab/timebucket/internal/core/storage --output ./storage --outpkg storagemocks --with-expecter
//go:generate mockery --name PushdownStore --srcpkg github.com/aevon-lab/timebucket/internal/core/storage --output ./storage --outpkg storagemocks --with-expecter
